package utils_test

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travispaul/nvd-search/utils"
)

func TestFetchURL(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		apikey     string
		wantErr    string
	}{
		{
			name:       "happy path",
			statusCode: http.StatusOK,
			body:       "sha256:ABCD\r\n",
		},
		{
			name:       "api key is forwarded",
			statusCode: http.StatusOK,
			body:       "ok",
			apikey:     "test-key",
		},
		{
			name:       "server error",
			statusCode: http.StatusServiceUnavailable,
			wantErr:    "status code: 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.apikey != "" {
					assert.Equal(t, tt.apikey, r.Header.Get("api-key"))
				}
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			body, err := utils.FetchURL(ts.URL, tt.apikey, 0)
			if tt.wantErr != "" {
				require.NotNil(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(body))
		})
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()

	exists, err := utils.Exists(dir)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = utils.Exists(filepath.Join(dir, "no-such-file"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLookupEnv(t *testing.T) {
	t.Setenv("NVD_SEARCH_TEST_ENV", "set")
	assert.Equal(t, "set", utils.LookupEnv("NVD_SEARCH_TEST_ENV", "default"))
	assert.Equal(t, "default", utils.LookupEnv("NVD_SEARCH_TEST_ENV_MISSING", "default"))
}
