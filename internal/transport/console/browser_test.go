package console

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/shortlink-console/internal/gate"
)

var browseRoute = gate.Route{Name: "browse", Policy: gate.RequiresAuth}

func TestBrowse_Navigation(t *testing.T) {
	f := newFixture(t)
	id := f.signIn()
	f.srv.AddLinks(id, 25)
	g := gate.New(f.sess, "login", "list")

	input := strings.NewReader("n\nn\nn\np\ng 1\nq\n")
	require.NoError(t, f.cmds.Browse(context.Background(), input, g, browseRoute))

	out := f.out.String()
	assert.Contains(t, out, "Page 1 of 3 (25 links)  [1] 2 3")
	assert.Contains(t, out, "Page 2 of 3 (25 links)  1 [2] 3")
	assert.Contains(t, out, "Page 3 of 3 (25 links)  1 2 [3]")
	assert.Empty(t, f.rec.Errors)
}

func TestBrowse_DeleteAndEdit(t *testing.T) {
	f := newFixture(t)
	id := f.signIn()
	codes := f.srv.AddLinks(id, 3)
	g := gate.New(f.sess, "login", "list")

	input := strings.NewReader(strings.Join([]string{
		"d " + codes[2],
		"u " + codes[1],
		"s yesterday",
		"s +24h",
		"q",
	}, "\n"))
	require.NoError(t, f.cmds.Browse(context.Background(), input, g, browseRoute))

	assert.Equal(t, 2, f.srv.LinkCount(id))
	assert.Contains(t, f.rec.Successes, "short link deleted")
	assert.Contains(t, f.rec.Successes, "expiry updated")
	require.Len(t, f.rec.Errors, 1)
	assert.Contains(t, f.rec.Errors[0], "invalid expiry")
	assert.Contains(t, f.out.String(), "editing ")
}

func TestBrowse_LogoutEndsSession(t *testing.T) {
	f := newFixture(t)
	id := f.signIn()
	f.srv.AddLinks(id, 3)
	g := gate.New(f.sess, "login", "list")
	requests := 0

	input := strings.NewReader("logout\nn\nn\n")
	require.NoError(t, f.cmds.Browse(context.Background(), input, g, browseRoute))

	assert.Contains(t, f.out.String(), "Session ended; run `shortctl login` to continue")
	assert.False(t, f.sess.IsAuthenticated())
	for _, r := range f.srv.Requests() {
		if r.Path == "/api/urls" {
			requests++
		}
	}
	assert.Equal(t, 1, requests)
}

func TestBrowse_UnknownCommand(t *testing.T) {
	f := newFixture(t)
	f.signIn()
	g := gate.New(f.sess, "login", "list")

	input := strings.NewReader("frobnicate\nh\n")
	require.NoError(t, f.cmds.Browse(context.Background(), input, g, browseRoute))

	assert.Equal(t, `unknown command "frobnicate"; type h for help`, f.rec.LastError())
	assert.Contains(t, f.out.String(), "g N               go to page N")
}
