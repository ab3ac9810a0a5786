package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var postsCreatedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "forumd_server_posts_created_total",
	Help: "The total number of posts created",
})

var postsDeletedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "forumd_server_posts_deleted_total",
	Help: "The total number of posts deleted",
})

var commentsCreatedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "forumd_server_comments_created_total",
	Help: "The total number of comments created",
})

var upvotesCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "forumd_server_upvotes_total",
	Help: "The total number of upvotes applied",
})
