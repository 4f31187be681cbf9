package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/careerquest/internal/i18n"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func wikiServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title := strings.TrimPrefix(r.URL.Path, "/summary/")
		switch title {
		case "Volcano":
			fmt.Fprint(w, `{"type":"standard","title":"Volcano","extract":"A volcano is a rupture in the crust. It lets lava escape. Earth's volcanoes occur along plate boundaries. Some are dormant."}`)
		case "Mercury":
			fmt.Fprint(w, `{"type":"disambiguation","title":"Mercury","extract":"Mercury may refer to:"}`)
		case "Marine_biology":
			fmt.Fprint(w, `{"type":"standard","title":"Marine biology","extract":"Marine biology is the study of life in the sea."}`)
		case "Broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWikipediaSummarize(t *testing.T) {
	srv := wikiServer(t)
	w := NewWikipedia(srv.URL + "/summary")
	ctx := context.Background()

	tests := []struct {
		topic string
		want  string
	}{
		{"Volcano", "A volcano is a rupture in the crust. It lets lava escape. Earth's volcanoes occur along plate boundaries."},
		{"Marine biology", "Marine biology is the study of life in the sea."},
		{"Xyzzyplugh", "Could not find a Wikipedia page for 'Xyzzyplugh'."},
		{"Mercury", "'Mercury' is ambiguous. Please be more specific."},
		{"Broken", "Could not retrieve a Wikipedia summary for this topic."},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Summarize(ctx, tt.topic))
		})
	}
}

func TestWikipediaUnreachable(t *testing.T) {
	srv := wikiServer(t)
	url := srv.URL
	srv.Close()

	w := NewWikipedia(url)
	assert.Equal(t, "Could not retrieve a Wikipedia summary for this topic.",
		w.Summarize(context.Background(), "Volcano"))
}

func TestWikipediaLookupErrors(t *testing.T) {
	srv := wikiServer(t)
	w := NewWikipedia(srv.URL + "/summary/")
	ctx := context.Background()

	_, err := w.Lookup(ctx, "Nothing Here")
	assert.ErrorIs(t, err, ErrPageNotFound)

	_, err = w.Lookup(ctx, "Mercury")
	assert.ErrorIs(t, err, ErrAmbiguous)

	_, err = w.Lookup(ctx, "   ")
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestFirstSentences(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"One. Two. Three. Four.", 3, "One. Two. Three."},
		{"Only one", 3, "Only one"},
		{"Pi is 3.14 roughly. Next! Really? Done.", 3, "Pi is 3.14 roughly. Next! Really?"},
		{"  Padded.  ", 1, "Padded."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, firstSentences(tt.in, tt.n), tt.in)
	}
}

const treeJSON = `{
  "kind": "Topic", "translated_title": "Root",
  "children": [
    {"kind": "Topic", "translated_title": "Math", "children": [
      {"kind": "Video", "translated_title": "Intro to Early Math", "youtube_id": "abc123"},
      {"kind": "Exercise", "translated_title": "Early math practice"},
      {"kind": "Video", "translated_title": "Arithmetic: adding", "youtube_id": "def456"}
    ]}
  ]
}`

func treeServer(t *testing.T, hits *atomic.Int32, fail *atomic.Bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail != nil && fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, treeJSON)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTopicTreeFetchesOnce(t *testing.T) {
	var hits atomic.Int32
	srv := treeServer(t, &hits, nil)
	tt := NewTopicTree(srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tt.Tree(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := tt.Tree(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestTopicTreeFailureNotCached(t *testing.T) {
	var hits atomic.Int32
	var fail atomic.Bool
	fail.Store(true)
	srv := treeServer(t, &hits, &fail)
	tt := NewTopicTree(srv.URL)

	_, err := tt.Tree(context.Background())
	require.Error(t, err)

	fail.Store(false)
	root, err := tt.Tree(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Root", root.TranslatedTitle)
	assert.Equal(t, int32(2), hits.Load())
}

func TestTopicTreeSurvivesCanceledCaller(t *testing.T) {
	var hits atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	var startOnce, releaseOnce sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		startOnce.Do(func() { close(started) })
		<-release
		fmt.Fprint(w, treeJSON)
	}))
	t.Cleanup(srv.Close)
	// Runs before srv.Close so a blocked handler never stalls cleanup.
	t.Cleanup(func() { releaseOnce.Do(func() { close(release) }) })

	tt := NewTopicTree(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 2)
	go func() {
		_, err := tt.Tree(ctx)
		errs <- err
	}()
	<-started

	go func() {
		_, err := tt.Tree(context.Background())
		errs <- err
	}()
	cancel()
	releaseOnce.Do(func() { close(release) })

	for range 2 {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, int32(1), hits.Load())

	root, err := tt.Tree(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, root)
}

func TestFindVideo(t *testing.T) {
	var hits atomic.Int32
	srv := treeServer(t, &hits, nil)
	tt := NewTopicTree(srv.URL)
	tt.pick = func(n int) int { return n - 1 }
	ctx := context.Background()

	v, ok := tt.FindVideo(ctx, "early math")
	require.True(t, ok)
	assert.Equal(t, "Intro to Early Math", v.Title)
	assert.Equal(t, "https://img.youtube.com/vi/abc123/hqdefault.jpg", v.ImageURL)

	v, ok = tt.FindVideo(ctx, "ARITHMETIC")
	require.True(t, ok)
	assert.Equal(t, "Arithmetic: adding", v.Title)

	_, ok = tt.FindVideo(ctx, "algebra basics")
	assert.False(t, ok)
}

func TestFindVideoTreeUnavailable(t *testing.T) {
	var hits atomic.Int32
	var fail atomic.Bool
	fail.Store(true)
	srv := treeServer(t, &hits, &fail)

	_, ok := NewTopicTree(srv.URL).FindVideo(context.Background(), "early math")
	assert.False(t, ok)
}

func TestFindVideosLimit(t *testing.T) {
	root := &Node{Kind: "Topic"}
	for i := 0; i < 25; i++ {
		root.Children = append(root.Children, &Node{
			Kind:            "Video",
			TranslatedTitle: fmt.Sprintf("Fractions %d", i),
			YouTubeID:       fmt.Sprint(i),
		})
	}
	found := findVideos(root, "fractions", maxVideoMatches)
	require.Len(t, found, maxVideoMatches)
	assert.Equal(t, "Fractions 0", found[0].TranslatedTitle)
}
