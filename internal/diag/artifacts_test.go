package diag

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
)

func TestFileSinkWritesArtifacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := NewFileSink(dir, zap.NewNop())
	require.NoError(t, err)

	sink.SaveHTML(crawler.EngineBing, crawler.FailureChallengeDetected, "<html>blocked</html>")
	sink.SaveScreenshot(crawler.EngineBing, crawler.FailureChallengeDetected, []byte{0x89, 'P', 'N', 'G'})

	html, err := os.ReadFile(filepath.Join(dir, "debug_bing_challenge_detected.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>blocked</html>", string(html))

	png, err := os.ReadFile(filepath.Join(dir, "debug_bing_challenge_detected.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png)
}

func TestFileSinkAppendsFailureLog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := NewFileSink(dir, zap.NewNop())
	require.NoError(t, err)

	ts := time.Unix(1700000000, 0).UTC()
	sink.LogFailure(crawler.FailureEvent{
		Timestamp: ts, Engine: crawler.EngineGoogle, Keyword: "a",
		Reason: crawler.FailureChallengeDetected, HTMLLen: 10,
	})
	sink.LogFailure(crawler.FailureEvent{
		Timestamp: ts, Engine: crawler.EngineBing, Keyword: "b",
		Reason: crawler.FailureNoResults, HTMLLen: 99,
	})

	raw, err := os.ReadFile(filepath.Join(dir, failureLogName))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)

	var event crawler.FailureEvent
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &event))
	assert.Equal(t, crawler.EngineBing, event.Engine)
	assert.Equal(t, crawler.FailureNoResults, event.Reason)
	assert.Equal(t, 99, event.HTMLLen)
}
