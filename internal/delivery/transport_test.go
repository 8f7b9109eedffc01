package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vdavid/vmail-lite/internal/testutil"
)

func TestSMTPTransportSubmit(t *testing.T) {
	server := testutil.NewTestSMTPServer(t, "s3cret")
	transport := &SMTPTransport{}
	raw := []byte("Subject: hi\r\n\r\nhello\r\n")

	err := transport.Submit(context.Background(), Submission{
		Host:     "127.0.0.1",
		Port:     server.Port(),
		Security: Plain,
		Username: "ali@example.com",
		Password: "s3cret",
		From:     "ali@example.com",
		To:       []string{"bob@example.com", "cem@example.com"},
		Raw:      raw,
	})

	require.NoError(t, err)
	msgs := server.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ali@example.com", msgs[0].Username)
	assert.Equal(t, "ali@example.com", msgs[0].From)
	assert.Equal(t, []string{"bob@example.com", "cem@example.com"}, msgs[0].To)
	assert.Equal(t, string(raw), string(msgs[0].Data))
}

func TestSMTPTransportWrongPassword(t *testing.T) {
	server := testutil.NewTestSMTPServer(t, "s3cret")
	transport := &SMTPTransport{}

	err := transport.Submit(context.Background(), Submission{
		Host:     "127.0.0.1",
		Port:     server.Port(),
		Security: Plain,
		Username: "ali@example.com",
		Password: "wrong",
		From:     "ali@example.com",
		To:       []string{"bob@example.com"},
		Raw:      []byte("x\r\n"),
	})

	assert.Error(t, err)
	assert.Empty(t, server.Messages())
}

func TestSMTPTransportUnreachable(t *testing.T) {
	transport := &SMTPTransport{}

	err := transport.Submit(context.Background(), Submission{Host: "127.0.0.1", Port: 1, Security: StartTLS})

	assert.Error(t, err)
}

func TestSMTPTransportEncryptedSubmit(t *testing.T) {
	tests := []struct {
		name     string
		server   testutil.SMTPSecurity
		security Security
	}{
		{"starttls upgrade", testutil.SMTPStartTLS, StartTLS},
		{"implicit tls", testutil.SMTPImplicitTLS, ImplicitTLS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := testutil.NewTestSMTPServerWithSecurity(t, "s3cret", tt.server)
			transport := &SMTPTransport{Timeout: 5 * time.Second, InsecureSkipVerify: true}

			err := transport.Submit(context.Background(), Submission{
				Host:     "127.0.0.1",
				Port:     server.Port(),
				Security: tt.security,
				Username: "ali@example.com",
				Password: "s3cret",
				From:     "ali@example.com",
				To:       []string{"bob@example.com"},
				Raw:      []byte("Subject: hi\r\n\r\nhello\r\n"),
			})

			require.NoError(t, err)
			msgs := server.Messages()
			require.Len(t, msgs, 1)
			assert.True(t, msgs[0].TLS)
			assert.Equal(t, "ali@example.com", msgs[0].Username)
		})
	}
}

func TestSMTPTransportTLSFailures(t *testing.T) {
	sub := func(port int, security Security) Submission {
		return Submission{
			Host:     "127.0.0.1",
			Port:     port,
			Security: security,
			Username: "ali@example.com",
			Password: "s3cret",
			From:     "ali@example.com",
			To:       []string{"bob@example.com"},
			Raw:      []byte("x\r\n"),
		}
	}

	t.Run("server without starttls", func(t *testing.T) {
		server := testutil.NewTestSMTPServer(t, "s3cret")
		transport := &SMTPTransport{Timeout: 5 * time.Second, InsecureSkipVerify: true}

		err := transport.Submit(context.Background(), sub(server.Port(), StartTLS))

		assert.Error(t, err)
		assert.Empty(t, server.Messages())
	})

	t.Run("untrusted certificate", func(t *testing.T) {
		server := testutil.NewTestSMTPServerWithSecurity(t, "s3cret", testutil.SMTPStartTLS)
		transport := &SMTPTransport{Timeout: 5 * time.Second}

		err := transport.Submit(context.Background(), sub(server.Port(), StartTLS))

		assert.Error(t, err)
		assert.Empty(t, server.Messages())
	})
}
