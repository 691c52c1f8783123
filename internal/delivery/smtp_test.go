package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	netmail "net/mail"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickscribe/internal/config"
	"quickscribe/internal/document"
	"quickscribe/internal/logger"
)

// fakeRelay is a minimal SMTP server. It offers STARTTLS and advertises the
// configured AUTH mechanisms only once the session is encrypted.
type fakeRelay struct {
	ln    net.Listener
	tls   *tls.Config
	mechs string
	user  string
	pass  string

	mu       sync.Mutex
	messages []string
}

// relayCerts borrows httptest's certificate, which is valid for 127.0.0.1.
func relayCerts(t *testing.T) (server, client *tls.Config) {
	t.Helper()
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	server = &tls.Config{Certificates: srv.TLS.Certificates, MinVersion: tls.VersionTLS12}
	client = &tls.Config{ServerName: "127.0.0.1", RootCAs: pool, MinVersion: tls.VersionTLS12}
	return server, client
}

func startRelay(t *testing.T, serverTLS *tls.Config, mechs, user, pass string) *fakeRelay {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	r := &fakeRelay{ln: ln, tls: serverTLS, mechs: mechs, user: user, pass: pass}
	go r.serve()
	t.Cleanup(func() { ln.Close() })
	return r
}

func (r *fakeRelay) port() int {
	return r.ln.Addr().(*net.TCPAddr).Port
}

func (r *fakeRelay) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func (r *fakeRelay) serve() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		go r.handle(conn)
	}
}

func (r *fakeRelay) handle(conn net.Conn) {
	defer func() { conn.Close() }()
	tp := textproto.NewConn(conn)
	secure := false
	_ = tp.PrintfLine("220 localhost ESMTP fake")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			_ = tp.PrintfLine("500 empty command")
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "EHLO":
			_ = tp.PrintfLine("250-localhost")
			if !secure {
				_ = tp.PrintfLine("250-STARTTLS")
				_ = tp.PrintfLine("250 8BITMIME")
				continue
			}
			_ = tp.PrintfLine("250-8BITMIME")
			_ = tp.PrintfLine("250 AUTH %s", r.mechs)
		case "STARTTLS":
			_ = tp.PrintfLine("220 2.0.0 Ready to start TLS")
			tlsConn := tls.Server(conn, r.tls)
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn = tlsConn
			tp = textproto.NewConn(conn)
			secure = true
		case "AUTH":
			if !secure || len(fields) < 2 {
				_ = tp.PrintfLine("530 5.7.0 Must issue a STARTTLS command first")
				continue
			}
			ok, err := r.authenticate(tp, fields)
			if err != nil {
				return
			}
			if ok {
				_ = tp.PrintfLine("235 2.7.0 Authentication successful")
			} else {
				_ = tp.PrintfLine("535 5.7.8 Authentication credentials invalid")
			}
		case "DATA":
			_ = tp.PrintfLine("354 End data with <CR><LF>.<CR><LF>")
			lines, err := tp.ReadDotLines()
			if err != nil {
				return
			}
			r.mu.Lock()
			r.messages = append(r.messages, strings.Join(lines, "\r\n")+"\r\n")
			r.mu.Unlock()
			_ = tp.PrintfLine("250 2.0.0 Ok: queued")
		case "QUIT":
			_ = tp.PrintfLine("221 2.0.0 Bye")
			return
		default:
			_ = tp.PrintfLine("250 2.0.0 Ok")
		}
	}
}

func (r *fakeRelay) authenticate(tp *textproto.Conn, fields []string) (bool, error) {
	mech := strings.ToUpper(fields[1])
	if !strings.Contains(" "+r.mechs+" ", " "+mech+" ") {
		return false, nil
	}
	switch mech {
	case "PLAIN":
		if len(fields) > 2 {
			creds, _ := base64.StdEncoding.DecodeString(fields[2])
			return string(creds) == "\x00"+r.user+"\x00"+r.pass, nil
		}
		creds, err := challenge(tp, "")
		return creds == "\x00"+r.user+"\x00"+r.pass, err
	case "LOGIN":
		user, err := challenge(tp, "Username:")
		if err != nil {
			return false, err
		}
		pass, err := challenge(tp, "Password:")
		return user == r.user && pass == r.pass, err
	}
	return false, nil
}

func challenge(tp *textproto.Conn, prompt string) (string, error) {
	_ = tp.PrintfLine("334 %s", base64.StdEncoding.EncodeToString([]byte(prompt)))
	line, err := tp.ReadLine()
	if err != nil {
		return "", err
	}
	decoded, _ := base64.StdEncoding.DecodeString(line)
	return string(decoded), nil
}

func writeDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), document.FileName)
	require.NoError(t, os.WriteFile(path, []byte("PK fake docx"), 0o644))
	return path
}

// newRelaySender starts a relay offering mechs and a sender logging in with pass.
func newRelaySender(t *testing.T, mechs, pass string) (*fakeRelay, *SMTPSender) {
	t.Helper()
	serverTLS, clientTLS := relayCerts(t)
	relay := startRelay(t, serverTLS, mechs, "relay-user", "secret")
	sender, err := NewSMTPSender(config.SMTP{
		Host:      "127.0.0.1",
		Port:      relay.port(),
		User:      "relay-user",
		Pass:      pass,
		From:      "quickscribe@example.com",
		TLSPolicy: "mandatory",
	}, logger.Discard())
	require.NoError(t, err)
	sender.tlsConfig = clientTLS
	return relay, sender
}

type attachment struct {
	filename    string
	contentType string
	body        []byte
}

func parseMessage(t *testing.T, raw string) (*netmail.Message, []attachment) {
	t.Helper()
	msg, err := netmail.ReadMessage(strings.NewReader(raw))
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)

	var out []attachment
	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if part.FileName() == "" {
			continue
		}
		ct, _, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		require.NoError(t, err)
		encoded, err := io.ReadAll(part)
		require.NoError(t, err)
		decoded, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(string(encoded)), ""))
		require.NoError(t, err)
		out = append(out, attachment{filename: part.FileName(), contentType: ct, body: decoded})
	}
	return msg, out
}

func TestSendDeliversAttachment(t *testing.T) {
	relay, sender := newRelaySender(t, "PLAIN", "secret")

	require.NoError(t, sender.Send(context.Background(), writeDoc(t), "customer@example.com"))

	msgs := relay.received()
	require.Len(t, msgs, 1)
	msg, atts := parseMessage(t, msgs[0])
	assert.Equal(t, Subject, msg.Header.Get("Subject"))
	assert.Contains(t, msg.Header.Get("To"), "customer@example.com")
	assert.Contains(t, msg.Header.Get("From"), "quickscribe@example.com")

	require.Len(t, atts, 1)
	assert.Equal(t, "transcript.docx", atts[0].filename)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", atts[0].contentType)
	assert.Equal(t, []byte("PK fake docx"), atts[0].body)
}

func TestSendNegotiatesAdvertisedMechanism(t *testing.T) {
	for _, mechs := range []string{"LOGIN", "PLAIN LOGIN", "LOGIN PLAIN"} {
		t.Run(mechs, func(t *testing.T) {
			relay, sender := newRelaySender(t, mechs, "secret")

			require.NoError(t, sender.Send(context.Background(), writeDoc(t), "customer@example.com"))
			assert.Len(t, relay.received(), 1)
		})
	}
}

func TestSendLoginFailure(t *testing.T) {
	relay, sender := newRelaySender(t, "LOGIN", "wrong")

	err := sender.Send(context.Background(), writeDoc(t), "customer@example.com")
	require.Error(t, err)
	assert.Empty(t, relay.received())
}

func TestSendMissingDocument(t *testing.T) {
	_, sender := newRelaySender(t, "PLAIN", "secret")

	err := sender.Send(context.Background(), filepath.Join(t.TempDir(), "missing.docx"), "customer@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attachment")
}

func TestBuildMessageRejectsBadRecipient(t *testing.T) {
	_, err := buildMessage("quickscribe@example.com", "not an address", writeDoc(t))
	require.Error(t, err)
}

func TestBuildMessageWrites(t *testing.T) {
	m, err := buildMessage("quickscribe@example.com", "customer@example.com", writeDoc(t))
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	_, atts := parseMessage(t, buf.String())
	require.Len(t, atts, 1)
	assert.Equal(t, document.FileName, atts[0].filename)
	assert.Equal(t, document.ContentType, atts[0].contentType)
}

func TestParseTLSPolicy(t *testing.T) {
	for _, raw := range []string{"", "mandatory", "Opportunistic", "none"} {
		_, err := parseTLSPolicy(raw)
		assert.NoError(t, err, raw)
	}
	_, err := parseTLSPolicy("starttls-please")
	assert.Error(t, err)

	_, err = NewSMTPSender(config.SMTP{TLSPolicy: "bogus"}, logger.Discard())
	assert.Error(t, err)
}
