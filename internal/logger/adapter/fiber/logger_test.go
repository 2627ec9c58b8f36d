package fiber_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wslogin/google-auth/internal/logger"
	adapter "github.com/wslogin/google-auth/internal/logger/adapter/fiber"
)

type accessLine struct {
	IP     net.IP `json:"IP"`
	Status int    `json:"status"`
	URI    string `json:"URI"`
	Method string `json:"method"`
	Host   string `json:"host"`
}

var consoleAccess = adapter.Config{
	Config: logger.Log{
		EnableAccessLogToConsole: true,
		Console:                  logger.Console{Enabled: true},
	},
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		config     adapter.Config
		targetPath string
		want       *accessLine
	}{
		{
			name:       "no writer no output",
			targetPath: "/",
		},
		{
			name:       "root",
			config:     consoleAccess,
			targetPath: "/",
			want:       &accessLine{Status: 200, URI: "/", Method: fiber.MethodGet, Host: "example.com"},
		},
		{
			name:       "unknown path",
			config:     consoleAccess,
			targetPath: "/no_path",
			want:       &accessLine{Status: 404, URI: "/no_path", Method: fiber.MethodGet, Host: "example.com"},
		},
		{
			name:       "plain params kept",
			config:     consoleAccess,
			targetPath: "/?test=123",
			want:       &accessLine{Status: 200, URI: "/?test=123", Method: fiber.MethodGet, Host: "example.com"},
		},
		{
			name:       "callback code and state redacted",
			config:     consoleAccess,
			targetPath: "/?code=4%2Fsecret&google_auth_openid=&state=abcdef",
			want: &accessLine{
				Status: 200,
				URI:    "/?code=REDACTED&google_auth_openid=&state=REDACTED",
				Method: fiber.MethodGet,
				Host:   "example.com",
			},
		},
		{
			name: "custom sensitive keys",
			config: adapter.Config{
				Config:             consoleAccess.Config,
				SensitiveQueryKeys: []string{"token"},
			},
			targetPath: "/?state=abc&token=xyz",
			want:       &accessLine{Status: 200, URI: "/?state=abc&token=REDACTED", Method: fiber.MethodGet, Host: "example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := runMiddleware(t, tt.targetPath, tt.config)

			if tt.want == nil {
				assert.Empty(t, output)

				return
			}

			require.NotEmpty(t, output)

			var got accessLine
			require.NoError(t, json.Unmarshal([]byte(output), &got))

			assert.Equal(t, tt.want.Host, got.Host)
			assert.Equal(t, tt.want.Method, got.Method)
			assert.Equal(t, tt.want.Status, got.Status)
			assert.Equal(t, tt.want.URI, got.URI)
			assert.Equal(t, net.ParseIP("0.0.0.0"), got.IP)
		})
	}
}

func runMiddleware(t *testing.T, targetPath string, cfg adapter.Config) string {
	t.Helper()

	stdout := os.Stdout
	stderr := os.Stderr

	r, w, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout = w
	os.Stderr = w

	app := fiber.New(fiber.Config{CaseSensitive: true, Immutable: true})
	app.Use(adapter.New(cfg))
	app.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.SendString("hello test")
	})

	_, testErr := app.Test(httptest.NewRequest(fiber.MethodGet, targetPath, nil), -1)

	outC := make(chan string)

	go func() {
		var buf bytes.Buffer

		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	_ = w.Close()
	os.Stdout = stdout
	os.Stderr = stderr
	out := <-outC

	require.NoError(t, testErr)

	return out
}
