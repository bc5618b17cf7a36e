// Package authphase drives the authentication state machine that follows
// the initial handshake packet: sending the handshake response, then
// cycling through OK/ERR/AuthSwitchRequest/AuthMoreData until the server
// renders a verdict. Grounded on the teacher's server/protocol/auth.go
// AuthPacket/EncodeLogin pairing, which drives the same plugin-negotiation
// shape from the server side.
package authphase

import (
	"github.com/xmysql/go-mysql-client/internal/auth"
	"github.com/xmysql/go-mysql-client/internal/mysqlproto"
	"github.com/xmysql/go-mysql-client/internal/xerrors"
)

const (
	pluginNativePassword  = "mysql_native_password"
	pluginCachingSHA2     = "caching_sha2_password"
	authSwitchRequestByte = 0xfe
)

// Options controls how Run negotiates the handshake response.
type Options struct {
	Username           string
	Password           []byte
	Database           string
	ClientWantedCaps   mysqlproto.CapabilityFlags
	ServerPublicKeyPEM []byte // pre-shared RSA key; skips the 0x02 round-trip if set
	AllowPublicKeyRetrieval bool
}

// Result is what the caller learns once the state machine reaches a
// terminal state.
type Result struct {
	Capabilities mysqlproto.CapabilityFlags
	OK           *mysqlproto.OKPacket
}

// Run executes the S0/S1 state machine described for the authentication
// phase, starting right after the initial handshake packet has already
// been decoded.
func Run(sock *mysqlproto.PacketSocket, hs *mysqlproto.InitialPacket, opts Options) (*Result, error) {
	caps := mysqlproto.Negotiate(hs.Capabilities, opts.ClientWantedCaps)

	pluginName := hs.AuthPluginName
	authResponse := computeInitialAuthResponse(pluginName, opts.Password, hs.AuthPluginData)

	resp := &mysqlproto.HandshakeResponse{
		ClientFlags:    caps,
		MaxPacketSize:  mysqlproto.MaxPayloadLen,
		Collation:      hs.Collation,
		Username:       opts.Username,
		AuthResponse:   authResponse,
		Database:       opts.Database,
		AuthPluginName: pluginName,
	}
	if caps.Has(mysqlproto.ClientConnectWithDB) && opts.Database == "" {
		resp.ClientFlags &^= mysqlproto.ClientConnectWithDB
	}

	if err := sock.Send(resp.Encode()); err != nil {
		return nil, err
	}

	currentPlugin := pluginName
	currentNonce := hs.AuthPluginData

	for {
		payload, err := mysqlproto.Receive(sock, func(p []byte) ([]byte, error) { return p, nil })
		if err != nil {
			return nil, err
		}
		if len(payload) == 0 {
			return nil, xerrors.ProtocolViolation("empty packet during authentication phase")
		}

		switch {
		case mysqlproto.IsOKHeader(payload, caps) && payload[0] != authSwitchRequestByte:
			ok, err := mysqlproto.DecodeOK(payload, caps)
			if err != nil {
				return nil, err
			}
			return &Result{Capabilities: caps, OK: ok}, nil

		case mysqlproto.IsErrHeader(payload):
			ep, err := mysqlproto.DecodeErr(payload, caps)
			if err != nil {
				return nil, err
			}
			return nil, xerrors.AuthFailure(ep.Code, ep.SQLState, ep.Message)

		case payload[0] == authSwitchRequestByte:
			newPlugin, newNonce, err := decodeAuthSwitchRequest(payload)
			if err != nil {
				return nil, err
			}
			currentPlugin = newPlugin
			currentNonce = newNonce

			switchResponse, err := computeAuthResponse(currentPlugin, opts.Password, currentNonce)
			if err != nil {
				return nil, err
			}
			if err := sock.Send(switchResponse); err != nil {
				return nil, err
			}

		case payload[0] == 0x01: // AuthMoreData
			more := payload[1:]
			if len(more) == 0 {
				continue
			}
			switch more[0] {
			case auth.FastAuthSuccess:
				// keep waiting for the OK packet that follows
			case auth.FullAuthRequest:
				if currentPlugin != pluginCachingSHA2 {
					return nil, xerrors.ProtocolViolation("full-auth request received under plugin %q", currentPlugin)
				}
				pubKey := opts.ServerPublicKeyPEM
				if len(pubKey) == 0 {
					if !opts.AllowPublicKeyRetrieval {
						return nil, xerrors.New(xerrors.KindInvalidAuthorization, nil,
							"caching_sha2_password full authentication requires the server's RSA public key, "+
								"but AllowPublicKeyRetrieval is false and no ServerPublicKeyPEM was configured")
					}
					// Request the public key (spec §4.3/§4.4): a bare 0x02
					// byte as the command payload, sequence id continuing
					// the current exchange (not reset — we're mid-command).
					if err := sock.Send([]byte{0x02}); err != nil {
						return nil, err
					}
					pubKey, err = mysqlproto.Receive(sock, func(p []byte) ([]byte, error) { return p, nil })
					if err != nil {
						return nil, err
					}
				}
				ciphertext, err := auth.EncryptFullAuthPassword(opts.Password, currentNonce, pubKey)
				if err != nil {
					return nil, err
				}
				if err := sock.Send(ciphertext); err != nil {
					return nil, err
				}
			default:
				return nil, xerrors.ProtocolViolation("unrecognized AuthMoreData subtype 0x%02x", more[0])
			}

		default:
			return nil, xerrors.ProtocolViolation("unexpected packet during authentication phase: header 0x%02x", payload[0])
		}
	}
}

// computeInitialAuthResponse computes the handshake response's
// AuthResponse field at S0. Per spec §4.4, "if the server's advertised
// plugin is unrecognized, handshake falls back to sending an empty auth
// response and relies on auth-switch to provide a known plugin" — this
// applies whether the server names no plugin at all (""), or names one
// this client doesn't implement, so both fall back here rather than
// failing the handshake before it is even sent. UNSUPPORTED_AUTH_PLUGIN is
// reserved for the auth-switch case (spec §4.4 "Tie-breaks"), handled by
// computeAuthResponse instead.
func computeInitialAuthResponse(plugin string, password []byte, nonce []byte) []byte {
	switch plugin {
	case pluginNativePassword:
		return auth.NativePassword(password, nonce)
	case pluginCachingSHA2:
		return auth.CachingSHA2FastAuth(password, nonce)
	default:
		return nil
	}
}

// computeAuthResponse computes the AuthSwitchResponse payload once the
// server has named a concrete plugin via AuthSwitchRequest. Unlike S0's
// fallback, an unrecognized plugin name here is terminal: the server
// explicitly chose it and there is no further negotiation round to fall
// back to (spec §4.4 "Tie-breaks").
func computeAuthResponse(plugin string, password []byte, nonce []byte) ([]byte, error) {
	switch plugin {
	case pluginNativePassword:
		return auth.NativePassword(password, nonce), nil
	case pluginCachingSHA2:
		return auth.CachingSHA2FastAuth(password, nonce), nil
	default:
		return nil, xerrors.UnsupportedAuthPlugin(plugin)
	}
}

func decodeAuthSwitchRequest(payload []byte) (plugin string, nonce []byte, err error) {
	pos := 1 // header byte already matched
	end := -1
	for i := pos; i < len(payload); i++ {
		if payload[i] == 0 {
			end = i
			break
		}
	}
	if end < 0 {
		return "", nil, xerrors.ProtocolViolation("auth-switch-request missing null-terminated plugin name")
	}
	plugin = string(payload[pos:end])
	nonce = payload[end+1:]
	if n := len(nonce); n > 0 && nonce[n-1] == 0 {
		nonce = nonce[:n-1]
	}
	return plugin, nonce, nil
}
