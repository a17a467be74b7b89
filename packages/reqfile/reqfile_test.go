package reqfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCollection = `
name: user service smoke
defaults:
  headers:
    Accept: application/json
  timeout: 5000
  retries: 1
vars:
  host: api.example.com
requests:
  - name: login
    method: POST
    url: https://{{host}}/login
    body:
      user: admin
      pass: "{{$ADMIN_PASS}}"
    capture:
      token: auth.token
    expect:
      - path: auth.token
        exists: true
  - name: profile
    url: https://{{host}}/me
    headers:
      Authorization: Bearer {{token}}
    type: json
    timeout: 2500
    expect:
      - path: user.name
        equals: admin
    bench:
      weight: 3
      think: 250
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sampleCollection), "smoke.yaml")
	require.NoError(t, err)

	assert.Equal(t, "user service smoke", f.Name)
	assert.Equal(t, "smoke.yaml", f.Path)
	assert.Equal(t, "application/json", f.Defaults.Headers["Accept"])
	assert.Equal(t, 5000, f.Defaults.Timeout)
	require.NotNil(t, f.Defaults.Retries)
	assert.Equal(t, 1, *f.Defaults.Retries)
	assert.Equal(t, "api.example.com", f.Vars["host"])

	require.Len(t, f.Requests, 2)

	login := f.Requests[0]
	assert.Equal(t, "login", login.Name)
	assert.Equal(t, "POST", login.Method)
	assert.Equal(t, "auth.token", login.Capture["token"])
	require.Len(t, login.Expect, 1)
	require.NotNil(t, login.Expect[0].Exists)
	assert.True(t, *login.Expect[0].Exists)

	body, ok := login.Body.(map[string]any)
	require.True(t, ok, "structured body should decode as a map")
	assert.Equal(t, "admin", body["user"])

	profile := f.Requests[1]
	assert.Empty(t, profile.Method)
	assert.Equal(t, "json", profile.Type)
	assert.Equal(t, 2500, profile.Timeout)
	assert.Equal(t, "admin", profile.Expect[0].Equals)
	require.NotNil(t, profile.Bench)
	assert.Equal(t, 3, profile.Bench.Weight)
	assert.Equal(t, 250, profile.Bench.Think)
	assert.Nil(t, login.Bench)
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("requests: [\n"), "broken.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smoke.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCollection), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path)
	assert.Equal(t, dir, f.Dir())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading collection")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no requests",
			yaml:    "name: empty\n",
			wantErr: "no requests",
		},
		{
			name:    "missing name",
			yaml:    "requests:\n  - url: https://x\n",
			wantErr: "has no name",
		},
		{
			name:    "duplicate name",
			yaml:    "requests:\n  - name: a\n    url: https://x\n  - name: a\n    url: https://y\n",
			wantErr: "duplicate request name",
		},
		{
			name:    "missing url",
			yaml:    "requests:\n  - name: a\n",
			wantErr: "has no url",
		},
		{
			name:    "unknown method",
			yaml:    "requests:\n  - name: a\n    url: https://x\n    method: YEET\n",
			wantErr: "unknown method",
		},
		{
			name:    "unknown type",
			yaml:    "requests:\n  - name: a\n    url: https://x\n    type: xml\n",
			wantErr: "unknown response type",
		},
		{
			name:    "body and form together",
			yaml:    "requests:\n  - name: a\n    url: https://x\n    body: hi\n    form:\n      f: v\n",
			wantErr: "both body and form",
		},
		{
			name:    "empty capture path",
			yaml:    "requests:\n  - name: a\n    url: https://x\n    capture:\n      token: \"\"\n",
			wantErr: "has no path",
		},
		{
			name:    "empty expectation",
			yaml:    "requests:\n  - name: a\n    url: https://x\n    expect:\n      - path: user.id\n",
			wantErr: "sets no condition",
		},
		{
			name:    "bad default type",
			yaml:    "defaults:\n  type: xml\nrequests:\n  - name: a\n    url: https://x\n",
			wantErr: "defaults have unknown response type",
		},
		{
			name:    "negative bench weight",
			yaml:    "requests:\n  - name: a\n    url: https://x\n    bench:\n      weight: -2\n",
			wantErr: "negative bench weight",
		},
		{
			name:    "bench setup and teardown together",
			yaml:    "requests:\n  - name: a\n    url: https://x\n    bench:\n      setup: true\n      teardown: true\n",
			wantErr: "both bench setup and teardown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.yaml), "t.yaml")
			require.NoError(t, err)

			err = f.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_OK(t *testing.T) {
	f, err := Parse([]byte(sampleCollection), "t.yaml")
	require.NoError(t, err)
	assert.NoError(t, f.Validate())
}

func TestLookup(t *testing.T) {
	f, err := Parse([]byte(sampleCollection), "t.yaml")
	require.NoError(t, err)

	req, ok := f.Lookup("profile")
	require.True(t, ok)
	assert.Equal(t, "profile", req.Name)

	_, ok = f.Lookup("absent")
	assert.False(t, ok)
}

func TestDir_InMemory(t *testing.T) {
	f, err := Parse([]byte(sampleCollection), "")
	require.NoError(t, err)
	assert.Equal(t, ".", f.Dir())
}
