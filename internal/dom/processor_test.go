package dom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPage = `<!DOCTYPE html>
<html>
<head><title>Sign in</title><script>track()</script><style>.x{}</style></head>
<body>
  <!-- header -->
  <nav class="top"><a href="/home">Home</a></nav>
  <form id="login" data-x="ignored">
    <label for="user">User</label>
    <input id="user" name="user" type="text" value="">
    <input id="pass" type="password" value="hunter2">
    <button type="submit" onclick="go()">Sign in</button>
  </form>
</body>
</html>`

func TestGetSimplifiedDOM(t *testing.T) {
	out, err := GetSimplifiedDOM(loginPage)
	require.NoError(t, err)

	assert.Contains(t, out, "<!DOCTYPE html>")
	assert.Contains(t, out, "<title>Sign in </title>")
	assert.Contains(t, out, `<a href="/home">Home </a>`)
	assert.Contains(t, out, `<form id="login">`)
	assert.Contains(t, out, `<label for="user">User </label>`)
	assert.Contains(t, out, `<input id="user" name="user" type="text" value="">`)
	assert.Contains(t, out, `<button type="submit">Sign in </button>`)

	assert.NotContains(t, out, "track()")
	assert.NotContains(t, out, ".x{}")
	assert.NotContains(t, out, "header")
	assert.NotContains(t, out, "<nav")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "data-x")
	assert.NotContains(t, out, "</input>")
}

func TestGetSimplifiedDOM_RedactsPasswords(t *testing.T) {
	out, err := GetSimplifiedDOM(loginPage)
	require.NoError(t, err)

	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, `value="[redacted]"`)
}

func TestGetSimplifiedDOM_Escapes(t *testing.T) {
	out, err := GetSimplifiedDOM(`<p title="a&quot;b">1 &lt; 2</p>`)
	require.NoError(t, err)
	assert.Contains(t, out, `<p title="a&#34;b">1 &lt; 2 </p>`)
}

func TestWriteSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")

	path, err := WriteSnapshot(dir, "login check/run:1", loginPage)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "login_check_run_1.html"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<form id="login">`)
}

func TestWriteSnapshot_EmptyName(t *testing.T) {
	path, err := WriteSnapshot(t.TempDir(), "", "<p>x</p>")
	require.NoError(t, err)
	assert.Equal(t, "snapshot.html", filepath.Base(path))
}
