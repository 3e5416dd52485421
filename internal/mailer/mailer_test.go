package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "enabled without smtp host",
			config: Config{
				Enabled:     true,
				FromAddress: "test@example.com",
			},
			wantErr: "SMTP host is required",
		},
		{
			name: "enabled without from address",
			config: Config{
				Enabled:  true,
				SMTPHost: "smtp.example.com",
			},
			wantErr: "from address is required",
		},
		{
			name: "disabled - no validation",
			config: Config{
				Enabled: false,
			},
			wantErr: "",
		},
		{
			name: "valid config",
			config: Config{
				Enabled:     true,
				SMTPHost:    "smtp.example.com",
				FromAddress: "test@example.com",
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, m)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, m)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	m, err := New(Config{
		Enabled:     true,
		SMTPHost:    "smtp.example.com",
		FromAddress: "test@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, 587, m.config.SMTPPort)
}

func TestNew_AuthSetup(t *testing.T) {
	t.Run("with credentials", func(t *testing.T) {
		m, err := New(Config{
			Enabled:      true,
			SMTPHost:     "smtp.example.com",
			FromAddress:  "test@example.com",
			SMTPUser:     "user",
			SMTPPassword: "pass",
		})
		require.NoError(t, err)
		assert.NotNil(t, m.auth)
	})

	t.Run("without credentials", func(t *testing.T) {
		m, err := New(Config{
			Enabled:     true,
			SMTPHost:    "smtp.example.com",
			FromAddress: "test@example.com",
		})
		require.NoError(t, err)
		assert.Nil(t, m.auth)
	})
}

func TestSendPasswordReset_DisabledDropsSilently(t *testing.T) {
	m, err := New(Config{Enabled: false})
	require.NoError(t, err)

	err = m.SendPasswordReset(context.Background(), "user@example.com", "user")
	assert.NoError(t, err, "disabled mailer must drop without failing the caller")
}

func TestBuildMessage(t *testing.T) {
	m := &Mailer{
		config: Config{
			FromAddress: "ShopAdmin <noreply@example.com>",
		},
	}

	msg := m.buildMessage("Password reset", "Reset instructions", "user@example.com")
	msgStr := string(msg)

	assert.Contains(t, msgStr, "From: ShopAdmin <noreply@example.com>\r\n")
	assert.Contains(t, msgStr, "To: user@example.com\r\n")
	assert.Contains(t, msgStr, "Subject: Password reset\r\n")
	assert.Contains(t, msgStr, "MIME-Version: 1.0\r\n")
	assert.Contains(t, msgStr, "Content-Type: text/plain; charset=\"utf-8\"\r\n")
	assert.Contains(t, msgStr, "\r\n\r\n")
	assert.Contains(t, msgStr, "Reset instructions")
}

func TestExtractEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{
			input:    "user@example.com",
			expected: "user@example.com",
		},
		{
			input:    "Test User <user@example.com>",
			expected: "user@example.com",
		},
		{
			input:    "<user@example.com>",
			expected: "user@example.com",
		},
		{
			input:    "invalid<",
			expected: "invalid<",
		},
		{
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractEmail(tt.input))
		})
	}
}
