package clientprep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesPlaceholdersInOrder(t *testing.T) {
	sql, err := Render("SELECT * FROM t WHERE id = ? AND name = ?", []interface{}{42, "o'brien"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM t WHERE id = 42 AND name = 'o\'brien'`, sql)
}

func TestRenderIgnoresPlaceholdersInsideStringLiterals(t *testing.T) {
	sql, err := Render("SELECT ? FROM t WHERE note = 'what? really?'", []interface{}{1})
	require.NoError(t, err)
	assert.Equal(t, `SELECT 1 FROM t WHERE note = 'what? really?'`, sql)
}

func TestRenderNullLiteral(t *testing.T) {
	sql, err := Render("UPDATE t SET x = ?", []interface{}{nil})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE t SET x = NULL", sql)
}

func TestRenderBytesLiteral(t *testing.T) {
	sql, err := Render("INSERT INTO t VALUES (?)", []interface{}{[]byte{0xde, 0xad}})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO t VALUES (x'dead')", sql)
}

func TestRenderArgumentCountMismatch(t *testing.T) {
	_, err := Render("SELECT ?, ?", []interface{}{1})
	assert.Error(t, err)

	_, err = Render("SELECT ?", []interface{}{1, 2})
	assert.Error(t, err)
}

func TestCollapseInsertProducesSingleMultiValuesStatement(t *testing.T) {
	sql, results, err := CollapseInsert(
		"INSERT INTO t(x,y) VALUES(?,?)",
		[][]interface{}{{1, "a"}, {2, "b"}},
	)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO t(x,y) VALUES (1,'a'),(2,'b')", sql)
	assert.Equal(t, []int64{SuccessNoInfo, SuccessNoInfo}, results)
}

func TestCollapseUpdateDeleteJoinsWithSemicolons(t *testing.T) {
	sql, err := CollapseUpdateDelete(
		"UPDATE t SET x = ? WHERE id = ?",
		[][]interface{}{{1, 10}, {2, 20}},
	)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE t SET x = 1 WHERE id = 10;UPDATE t SET x = 2 WHERE id = 20", sql)
}

func TestCollapseInsertRejectsNonInsert(t *testing.T) {
	_, _, err := CollapseInsert("UPDATE t SET x=?", [][]interface{}{{1}})
	assert.Error(t, err)
}
