package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memorial-heritage/api/internal/platform/jobs"
	"github.com/memorial-heritage/api/internal/repositories/fixture"
	"github.com/memorial-heritage/api/internal/slug"
)

const fixturePath = "../../internal/repositories/fixture/testdata/archive.yaml"

func run(t *testing.T, publish publisher, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(publish)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func noPublish(t *testing.T) publisher {
	return func(context.Context, string, string, jobs.RefreshMessage) (string, error) {
		t.Fatal("unexpected publish")
		return "", nil
	}
}

func fixtureMartyrSlug(t *testing.T) (string, string) {
	t.Helper()
	repo, err := fixture.Load(fixturePath, nil)
	require.NoError(t, err)
	martyrs, err := repo.ListMartyrs(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, martyrs)
	return martyrs[0].ID, slug.Encode(martyrs[0])
}

func TestSlugCommandListsSlugs(t *testing.T) {
	id, encoded := fixtureMartyrSlug(t)

	out, err := run(t, noPublish(t), "--fixture", fixturePath, "slug", "martyrs")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, id)
	assert.Contains(t, out, encoded)
}

func TestSlugCommandRejectsSettings(t *testing.T) {
	_, err := run(t, noPublish(t), "--fixture", fixturePath, "slug", "site-settings")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no slugs")

	_, err = run(t, noPublish(t), "--fixture", fixturePath, "slug", "wars")
	require.Error(t, err)
}

func TestSlugCommandRequiresFixture(t *testing.T) {
	t.Setenv("ARCHIVE_FIXTURE_FILE", "")
	_, err := run(t, noPublish(t), "slug", "martyrs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--fixture")
}

func TestResolveCommand(t *testing.T) {
	id, encoded := fixtureMartyrSlug(t)

	out, err := run(t, noPublish(t), "--fixture", fixturePath, "resolve", "martyrs", url.PathEscape(encoded))
	require.NoError(t, err)
	assert.Contains(t, out, "id:   "+id)

	out, err = run(t, noPublish(t), "--fixture", fixturePath, "resolve", "martyrs", id)
	require.NoError(t, err, "raw ids resolve as a fallback")
	assert.Contains(t, out, "slug: "+encoded)

	_, err = run(t, noPublish(t), "--fixture", fixturePath, "resolve", "martyrs", "nobody--at-all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no martyrs matches")
}

func TestRefreshCommandPublishes(t *testing.T) {
	var (
		gotProject, gotTopic string
		gotMsg               jobs.RefreshMessage
	)
	publish := func(_ context.Context, projectID, topicID string, msg jobs.RefreshMessage) (string, error) {
		gotProject, gotTopic, gotMsg = projectID, topicID, msg
		return "msg-1", nil
	}

	out, err := run(t, publish, "refresh", "--project", "archive-prod", "--topic", "archive-content", "martyrs", "legends")
	require.NoError(t, err)
	assert.Equal(t, "archive-prod", gotProject)
	assert.Equal(t, "archive-content", gotTopic)
	assert.Equal(t, []string{"martyrs", "legends"}, gotMsg.Collections)
	assert.Contains(t, out, "message msg-1")

	_, err = run(t, noPublish(t), "refresh", "--project", "archive-prod", "--topic", "archive-content", "wars")
	require.Error(t, err)

	t.Setenv("ARCHIVE_PUBSUB_PROJECT_ID", "")
	t.Setenv("ARCHIVE_FIREBASE_PROJECT_ID", "")
	t.Setenv("ARCHIVE_PUBSUB_REFRESH_TOPIC", "")
	_, err = run(t, noPublish(t), "refresh", "martyrs")
	require.Error(t, err)
}

func TestDefaultPublisherUsesEmulator(t *testing.T) {
	srv := pstest.NewServer()
	defer srv.Close()
	t.Setenv("PUBSUB_EMULATOR_HOST", srv.Addr)

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "test-project")
	require.NoError(t, err)
	defer client.Close()
	_, err = client.CreateTopic(ctx, "archive-content")
	require.NoError(t, err)

	id, err := defaultPublisher(ctx, "test-project", "archive-content", jobs.RefreshMessage{Collections: []string{"*"}})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var body jobs.RefreshMessage
	require.NoError(t, json.Unmarshal(msgs[0].Data, &body))
	assert.Equal(t, []string{"*"}, body.Collections)
}
