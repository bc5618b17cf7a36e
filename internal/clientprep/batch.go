package clientprep

import (
	"strings"

	"github.com/xmysql/go-mysql-client/internal/xerrors"
)

// SuccessNoInfo is the batch-update sentinel MySQL returns for a statement
// whose individual affected-row count the server chooses not to report
// (spec §4.7's INSERT-collapse scenario).
const SuccessNoInfo int64 = -2

// CollapseInsert builds the single COM_QUERY text for a batched INSERT:
// template is the prepared SQL with exactly one `VALUES (...)` clause;
// batchParams holds one parameter slice per row. The returned SQL splices
// every row's tuple onto that VALUES clause and the caller gets back one
// SUCCESS_NO_INFO per row (spec §4.7 batch-INSERT scenario).
func CollapseInsert(template string, batchParams [][]interface{}) (string, []int64, error) {
	upper := strings.ToUpper(strings.TrimSpace(template))
	if !strings.HasPrefix(upper, "INSERT") {
		return "", nil, xerrors.BadParameter("CollapseInsert called on a non-INSERT statement")
	}

	valuesIdx := strings.Index(upper, "VALUES")
	if valuesIdx < 0 {
		return "", nil, xerrors.BadParameter("INSERT statement has no VALUES clause to collapse")
	}

	prefix := template[:valuesIdx+len("VALUES")]
	tupleTemplate := template[valuesIdx+len("VALUES"):]

	tuples := make([]string, 0, len(batchParams))
	for _, params := range batchParams {
		rendered, err := Render(tupleTemplate, params)
		if err != nil {
			return "", nil, err
		}
		tuples = append(tuples, strings.TrimSpace(rendered))
	}

	sql := prefix + " " + strings.Join(tuples, ",")
	results := make([]int64, len(batchParams))
	for i := range results {
		results[i] = SuccessNoInfo
	}
	return sql, results, nil
}

// CollapseUpdateDelete builds the `;`-joined multi-statement text for a
// batched UPDATE or DELETE: one fully-rendered statement per parameter set
// (spec §4.7). The caller is responsible for toggling
// CLIENT_MULTI_STATEMENTS on around sending this and reading one response
// per statement back.
func CollapseUpdateDelete(template string, batchParams [][]interface{}) (string, error) {
	upper := strings.ToUpper(strings.TrimSpace(template))
	if !strings.HasPrefix(upper, "UPDATE") && !strings.HasPrefix(upper, "DELETE") {
		return "", xerrors.BadParameter("CollapseUpdateDelete called on a statement that is neither UPDATE nor DELETE")
	}

	statements := make([]string, 0, len(batchParams))
	for _, params := range batchParams {
		rendered, err := Render(template, params)
		if err != nil {
			return "", err
		}
		statements = append(statements, rendered)
	}
	return strings.Join(statements, ";"), nil
}
