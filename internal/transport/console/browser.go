package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/joshdurbin/shortlink-console/internal/controller"
	"github.com/joshdurbin/shortlink-console/internal/gate"
	"github.com/joshdurbin/shortlink-console/internal/validation"
)

const browseHelp = `Commands:
  n                 next page
  p                 previous page
  g N               go to page N
  r                 refresh
  d ID|CODE         delete a link
  u ID|CODE [TIME]  edit a link's expiry, saving when TIME is given
  s TIME            save the open expiry editor
  c                 close the expiry editor
  logout            sign out and leave
  q                 quit
TIME is RFC 3339, "YYYY-MM-DD HH:MM" or an offset such as +48h`

// Browse runs an interactive pager over the user's links, reading
// commands from in until quit, end of input or the route is no longer
// allowed for the session
func (c *Commands) Browse(ctx context.Context, in io.Reader, g *gate.Gate, route gate.Route) error {
	var ended atomic.Bool
	stop := g.Watch(c.session, route, func(d gate.Decision) {
		if !d.Allowed {
			ended.Store(true)
		}
	})
	defer stop()

	ctrl := c.newController()
	_ = ctrl.FetchPage(ctx, 1)
	c.printPage(ctrl)

	scanner := bufio.NewScanner(in)
	for {
		if d := g.Check(route); ended.Load() || !d.Allowed {
			fmt.Fprintf(c.out, "Session ended; run `shortctl %s` to continue\n", g.LoginRoute())
			return nil
		}

		c.prompt(ctrl)
		if !scanner.Scan() {
			return scanner.Err()
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		quit, show := c.dispatch(ctx, ctrl, fields)
		if quit {
			return nil
		}
		if show && !ended.Load() {
			c.printPage(ctrl)
		}
	}
}

func (c *Commands) prompt(ctrl *controller.PageController) {
	if resource, ok := ctrl.Editing(); ok {
		fmt.Fprintf(c.out, "editing %d (expires %s)> ", resource.ID, resource.ExpiresAt.Local().Format(timeLayout))
		return
	}
	fmt.Fprint(c.out, "> ")
}

// dispatch runs one command. It reports whether to leave the loop and
// whether the page should be redrawn.
func (c *Commands) dispatch(ctx context.Context, ctrl *controller.PageController, fields []string) (quit, show bool) {
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "q", "quit", "exit":
		return true, false
	case "h", "help", "?":
		fmt.Fprintln(c.out, browseHelp)
		return false, false
	case "n", "next":
		_ = ctrl.Next(ctx)
	case "p", "prev":
		_ = ctrl.Prev(ctx)
	case "r", "refresh":
		_ = ctrl.Refresh(ctx)
	case "g", "goto":
		if len(args) != 1 {
			c.notifier.Error("usage: g N")
			return false, false
		}
		page, err := strconv.Atoi(args[0])
		if err != nil {
			c.notifier.Error("page must be a number")
			return false, false
		}
		_ = ctrl.GoTo(ctx, page)
	case "d", "delete":
		if len(args) != 1 {
			c.notifier.Error("usage: d ID|CODE")
			return false, false
		}
		resource, ok := ctrl.Lookup(args[0])
		if !ok {
			c.notifier.Error("no link " + args[0] + " on this page")
			return false, false
		}
		_ = ctrl.Delete(ctx, resource)
	case "u", "update":
		if len(args) < 1 {
			c.notifier.Error("usage: u ID|CODE [TIME]")
			return false, false
		}
		resource, ok := ctrl.Lookup(args[0])
		if !ok {
			c.notifier.Error("no link " + args[0] + " on this page")
			return false, false
		}
		ctrl.BeginEdit(resource)
		if len(args) == 1 {
			return false, false
		}
		c.save(ctx, ctrl, strings.Join(args[1:], " "))
	case "s", "save":
		if len(args) < 1 {
			c.notifier.Error("usage: s TIME")
			return false, false
		}
		c.save(ctx, ctrl, strings.Join(args, " "))
	case "c", "cancel":
		ctrl.CancelEdit()
		return false, false
	case "logout":
		_ = c.Logout()
		return false, false
	default:
		c.notifier.Error("unknown command " + strconv.Quote(cmd) + "; type h for help")
		return false, false
	}
	return false, true
}

// save submits the open expiry editor. Invalid input leaves it open.
func (c *Commands) save(ctx context.Context, ctrl *controller.PageController, expiry string) {
	resource, ok := ctrl.Editing()
	if !ok {
		c.notifier.Error("no expiry editor is open; use u ID|CODE first")
		return
	}

	at, err := ParseExpiry(expiry, c.now())
	if err != nil {
		c.notifier.Error(err.Error())
		return
	}
	if err := c.check(&validation.UpdateExpiryForm{ExpiresAt: at}); err != nil {
		return
	}
	_ = ctrl.Update(ctx, resource, at)
}
