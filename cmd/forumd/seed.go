package main

import (
	"fmt"
	"math/rand"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/urfave/cli/v2"

	"github.com/rescroll/forumd/client"
	"github.com/rescroll/forumd/forum"
	"github.com/rescroll/forumd/util/cliutil"
)

var seedCmd = &cli.Command{
	Name:   "seed",
	Usage:  "populate a forumd backend with generated posts",
	Action: runSeed,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Usage:   "forumd server to send requests to",
			Value:   "http://localhost:8994",
			EnvVars: []string{"FORUMD_HOST"},
		},
		&cli.IntFlag{
			Name:  "count",
			Usage: "number of posts to create",
			Value: 25,
		},
		&cli.IntFlag{
			Name:  "max-comments",
			Usage: "maximum number of comments per post",
			Value: 4,
		},
		&cli.IntFlag{
			Name:  "max-votes",
			Usage: "maximum number of upvotes per post",
			Value: 10,
		},
	},
}

func runSeed(cctx *cli.Context) error {
	logger := setupLogger(cctx.String("log-level"))
	ctx := cctx.Context

	host := cctx.String("host")

	// wait for the backend with the retrying probe client
	probe := &client.Client{Host: host, Client: cliutil.RobustHTTPClient()}
	health, err := probe.Health(ctx)
	if err != nil {
		return fmt.Errorf("backend not reachable at %s: %w", host, err)
	}
	logger.Info("backend is up", "host", host, "version", health.Version)

	// mutations go over the non-retrying client so a flaky network can't
	// duplicate posts
	c := &client.Client{Host: host}

	for i := 0; i < cctx.Int("count"); i++ {
		draft := forum.PostDraft{
			Title: gofakeit.Sentence(6),
			Body:  gofakeit.Paragraph(1, 3, 12, " "),
		}
		if rand.Intn(3) == 0 {
			draft.MediaRef = gofakeit.URL()
		}

		post, err := c.CreatePost(ctx, draft)
		if err != nil {
			return fmt.Errorf("failed to create post %d: %w", i, err)
		}

		for j := 0; j < rand.Intn(cctx.Int("max-comments")+1); j++ {
			if _, err := c.AddComment(ctx, post.ID, gofakeit.HipsterSentence(8)); err != nil {
				return fmt.Errorf("failed to comment on post %s: %w", post.ID, err)
			}
		}

		for j := 0; j < rand.Intn(cctx.Int("max-votes")+1); j++ {
			if _, err := c.UpvotePost(ctx, post.ID); err != nil {
				return fmt.Errorf("failed to upvote post %s: %w", post.ID, err)
			}
		}

		logger.Debug("seeded post", "post", post.ID, "title", post.Title)
	}

	logger.Info("seeding complete", "posts", cctx.Int("count"))
	return nil
}
