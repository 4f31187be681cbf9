package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pavelanni/careerquest/internal/metrics"
)

// DefaultTopicTreeURL is the public Khan Academy topic tree.
const DefaultTopicTreeURL = "http://www.khanacademy.org/api/v1/topictree"

// maxVideoMatches bounds the tree walk in FindVideo.
const maxVideoMatches = 10

// Node is one entry of the topic tree. Only the fields used for video
// search are decoded.
type Node struct {
	Kind            string  `json:"kind"`
	TranslatedTitle string  `json:"translated_title"`
	YouTubeID       string  `json:"youtube_id"`
	Children        []*Node `json:"children"`
}

// Video is a topic-tree video picked for a quest.
type Video struct {
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
}

// TopicTree downloads the topic tree once and keeps it for the life of the
// process. A failed download is not remembered, so the next call retries.
type TopicTree struct {
	url        string
	httpClient *http.Client

	mu   sync.RWMutex
	root *Node

	group singleflight.Group
	pick  func(n int) int
}

// NewTopicTree returns a cache for the tree at url. An empty url selects
// DefaultTopicTreeURL.
func NewTopicTree(url string) *TopicTree {
	if url == "" {
		url = DefaultTopicTreeURL
	}
	return &TopicTree{
		url: url,
		// The full tree is tens of megabytes.
		httpClient: &http.Client{Timeout: 60 * time.Second},
		pick:       rand.IntN,
	}
}

// Tree returns the cached tree, downloading it on first use. Concurrent
// first callers share one download, which is bounded by the client timeout
// rather than by any caller's context.
func (t *TopicTree) Tree(ctx context.Context) (*Node, error) {
	t.mu.RLock()
	root := t.root
	t.mu.RUnlock()
	if root != nil {
		return root, nil
	}

	v, err, _ := t.group.Do("tree", func() (any, error) {
		t.mu.RLock()
		cached := t.root
		t.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		// The download is shared, so it must outlive the caller that started it.
		fetched, err := t.fetch(context.WithoutCancel(ctx))
		if err != nil {
			metrics.TopicTreeFetchesTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.TopicTreeFetchesTotal.WithLabelValues("ok").Inc()

		t.mu.Lock()
		t.root = fetched
		t.mu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Node), nil
}

func (t *TopicTree) fetch(ctx context.Context) (*Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build topic tree request: %w", err)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("topic tree request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("topic tree returned status %d", resp.StatusCode)
	}

	var root Node
	if err := json.NewDecoder(resp.Body).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode topic tree: %w", err)
	}
	slog.Info("topic tree loaded", "url", t.url)
	return &root, nil
}

// FindVideo picks a random video whose title contains term
// (case-insensitive) from the first matches of a depth-first walk. The
// boolean is false when the tree is unavailable or nothing matches.
func (t *TopicTree) FindVideo(ctx context.Context, term string) (Video, bool) {
	root, err := t.Tree(ctx)
	if err != nil {
		metrics.KnowledgeLookupsTotal.WithLabelValues("topic_tree", "error").Inc()
		slog.Warn("topic tree unavailable", "error", err)
		return Video{}, false
	}

	matches := findVideos(root, strings.ToLower(term), maxVideoMatches)
	if len(matches) == 0 {
		metrics.KnowledgeLookupsTotal.WithLabelValues("topic_tree", "not_found").Inc()
		return Video{}, false
	}
	metrics.KnowledgeLookupsTotal.WithLabelValues("topic_tree", "ok").Inc()

	v := matches[t.pick(len(matches))]
	return Video{
		Title:    v.TranslatedTitle,
		ImageURL: ThumbnailURL(v.YouTubeID),
	}, true
}

// ThumbnailURL is the high-quality YouTube thumbnail for a video id.
func ThumbnailURL(youtubeID string) string {
	return "https://img.youtube.com/vi/" + youtubeID + "/hqdefault.jpg"
}

func findVideos(root *Node, term string, limit int) []*Node {
	var found []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil || len(found) >= limit {
			return
		}
		if n.Kind == "Video" && strings.Contains(strings.ToLower(n.TranslatedTitle), term) {
			found = append(found, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return found
}
