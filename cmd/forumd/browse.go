package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/rescroll/forumd/client"
	"github.com/rescroll/forumd/engine"
	"github.com/rescroll/forumd/forum"
)

var browseCmd = &cli.Command{
	Name:   "browse",
	Usage:  "interactively browse and edit a forumd backend",
	Action: runBrowse,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Usage:   "forumd server to send requests to",
			Value:   "http://localhost:8994",
			EnvVars: []string{"FORUMD_HOST"},
		},
	},
}

type browseSession struct {
	ctrl    *engine.Controller
	scanner *bufio.Scanner
	state   engine.ViewState

	// view is the most recent projection; list indexes shown to the user
	// resolve against it
	view []forum.Post
}

func runBrowse(cctx *cli.Context) error {
	logger := setupLogger(cctx.String("log-level"))
	ctx := cctx.Context

	remote := &client.Client{Host: cctx.String("host")}
	ctrl := engine.NewController(engine.NewStore(), remote, logger)

	sess := &browseSession{
		ctrl:    ctrl,
		scanner: bufio.NewScanner(os.Stdin),
	}
	ctrl.Confirm = func(post forum.Post) bool {
		fmt.Printf("delete %q? [y/N] ", post.Title)
		line, ok := sess.readLine()
		return ok && strings.HasPrefix(strings.ToLower(line), "y")
	}

	if err := ctrl.Load(ctx); err != nil {
		// keep the session open; the user can retry with `reload`
		fmt.Println("error:", err)
	} else {
		sess.printList()
	}

	for {
		fmt.Print("> ")
		line, ok := sess.readLine()
		if !ok {
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "quit", "exit", "q":
			return nil
		case "help":
			sess.printHelp()
		case "list", "ls":
			sess.printList()
		case "search":
			sess.state = sess.state.WithSearch(strings.Join(args, " "))
			sess.printList()
		case "sort":
			if len(args) != 1 {
				fmt.Println("usage: sort votes|recent")
				continue
			}
			switch args[0] {
			case "votes":
				sess.state = sess.state.WithSort(engine.SortByVotes)
			case "recent":
				sess.state = sess.state.WithSort(engine.SortByRecency)
			default:
				fmt.Println("usage: sort votes|recent")
				continue
			}
			sess.printList()
		case "show":
			sess.cmdShow(args)
		case "create":
			sess.cmdCreate(cctx)
		case "edit":
			sess.cmdEdit(cctx, args)
		case "delete", "rm":
			sess.cmdDelete(cctx, args)
		case "vote":
			sess.cmdVote(cctx, args)
		case "comment":
			sess.cmdComment(cctx, args)
		case "reload":
			if err := sess.ctrl.Load(ctx); err != nil {
				fmt.Println("error:", err)
				continue
			}
			sess.printList()
		default:
			fmt.Printf("unknown command %q (try `help`)\n", cmd)
		}
	}
}

func (s *browseSession) readLine() (string, bool) {
	if !s.scanner.Scan() {
		return "", false
	}
	return s.scanner.Text(), true
}

func (s *browseSession) printHelp() {
	fmt.Println(`commands:
  list                 show posts with the current search/sort
  search [term]        filter by title substring (no term clears it)
  sort votes|recent    change the sort mode
  show <n>             show post n with comments
  create               create a new post
  edit <n>             edit post n
  delete <n>           delete post n (asks for confirmation)
  vote <n>             upvote post n
  comment <n> <text>   comment on post n
  reload               re-fetch everything from the backend
  quit`)
}

func (s *browseSession) printList() {
	s.view = engine.Project(s.ctrl.Store().List(), s.state)
	if len(s.view) == 0 {
		if s.state.Search != "" {
			fmt.Printf("no posts match %q\n", s.state.Search)
		} else {
			fmt.Println("no posts yet")
		}
		return
	}
	fmt.Printf("%d posts (sort: %s", len(s.view), s.state.Sort)
	if s.state.Search != "" {
		fmt.Printf(", search: %q", s.state.Search)
	}
	fmt.Println(")")
	for i, p := range s.view {
		fmt.Printf("%3d. %-50s %4d votes  %3d comments  %s\n",
			i+1, truncate(p.Title, 50), p.VoteCount, len(p.Comments), formatAge(p.CreatedAt))
	}
}

// resolve maps a 1-based list index to the live store record.
func (s *browseSession) resolve(args []string) (forum.Post, bool) {
	if len(args) < 1 {
		fmt.Println("which post? (use the number from `list`)")
		return forum.Post{}, false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(s.view) {
		fmt.Printf("no such post %q (use the number from `list`)\n", args[0])
		return forum.Post{}, false
	}
	post, ok := s.ctrl.Store().Get(s.view[n-1].ID)
	if !ok {
		fmt.Println("that post is gone; try `list` again")
		return forum.Post{}, false
	}
	return post, true
}

func (s *browseSession) cmdShow(args []string) {
	post, ok := s.resolve(args)
	if !ok {
		return
	}
	fmt.Printf("%s\n%d votes, posted %s\n", post.Title, post.VoteCount, formatAge(post.CreatedAt))
	if post.Body != "" {
		fmt.Println()
		fmt.Println(post.Body)
	}
	if post.MediaRef != "" {
		fmt.Println("media:", post.MediaRef)
	}
	fmt.Printf("\n%d comments:\n", len(post.Comments))
	for _, c := range post.Comments {
		fmt.Printf("  - %s (%s)\n", c.Text, formatAge(c.CreatedAt))
	}
}

func (s *browseSession) prompt(label, initial string) string {
	if initial != "" {
		fmt.Printf("%s [%s]: ", label, truncate(initial, 40))
	} else {
		fmt.Printf("%s: ", label)
	}
	line, ok := s.readLine()
	if !ok || strings.TrimSpace(line) == "" {
		return initial
	}
	return line
}

func (s *browseSession) cmdCreate(cctx *cli.Context) {
	draft := forum.PostDraft{
		Title:    s.prompt("title", ""),
		Body:     s.prompt("body (optional)", ""),
		MediaRef: s.prompt("media URL (optional)", ""),
	}
	post, err := s.ctrl.SubmitCreate(cctx.Context, draft)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("created %q\n", post.Title)
	s.printList()
}

func (s *browseSession) cmdEdit(cctx *cli.Context, args []string) {
	post, ok := s.resolve(args)
	if !ok {
		return
	}
	patch := forum.PostPatch{
		Title:    s.prompt("title", post.Title),
		Body:     s.prompt("body", post.Body),
		MediaRef: s.prompt("media URL", post.MediaRef),
	}
	updated, err := s.ctrl.SubmitUpdate(cctx.Context, post.ID, patch)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("updated %q\n", updated.Title)
}

func (s *browseSession) cmdDelete(cctx *cli.Context, args []string) {
	post, ok := s.resolve(args)
	if !ok {
		return
	}
	err := s.ctrl.SubmitDelete(cctx.Context, post.ID)
	if errors.Is(err, engine.ErrDeleteAborted) {
		fmt.Println("kept it")
		return
	}
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("deleted %q\n", post.Title)
	s.printList()
}

func (s *browseSession) cmdVote(cctx *cli.Context, args []string) {
	post, ok := s.resolve(args)
	if !ok {
		return
	}
	if err := s.ctrl.SubmitVote(cctx.Context, post.ID); err != nil {
		fmt.Println("error:", err)
		return
	}
	if p, ok := s.ctrl.Store().Get(post.ID); ok {
		fmt.Printf("%q now has %d votes\n", p.Title, p.VoteCount)
	}
}

func (s *browseSession) cmdComment(cctx *cli.Context, args []string) {
	post, ok := s.resolve(args)
	if !ok {
		return
	}
	text := strings.Join(args[1:], " ")
	if text == "" {
		text = s.prompt("comment", "")
	}
	if _, err := s.ctrl.SubmitComment(cctx.Context, post.ID, text); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("comment added")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
