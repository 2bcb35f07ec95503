package handlers

import (
	"testing"

	"buildcost/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergePlannerScenesAttachesThumbnails(t *testing.T) {
	projects := []models.Project{
		{ID: 1, Status: models.StatusCreated, PlannerKey: "k1"},
		{ID: 2, Status: models.StatusCreated, PlannerKey: "k2", Picture: "custom.jpg"},
		{ID: 3, Status: models.StatusCreated, IsManual: true},
	}
	scenes := []models.PlannerSceneInfo{
		{Key: "k1", Name: "lakeside", Thumbnail: "thumb1.jpg"},
		{Key: "k2", Name: "cabin", Thumbnail: "thumb2.jpg"},
	}

	merged, orphans := mergePlannerScenes(projects, scenes)

	require.Len(t, merged, 3)
	assert.Equal(t, "thumb1.jpg", merged[0].Picture)
	// An explicit picture is never overwritten by the scene thumbnail.
	assert.Equal(t, "custom.jpg", merged[1].Picture)
	assert.Empty(t, orphans)
}

func TestMergePlannerScenesHidesWaitingStillOnPlanner(t *testing.T) {
	projects := []models.Project{
		{ID: 1, Status: models.StatusWaiting, PlannerKey: "k1"},
		{ID: 2, Status: models.StatusWaiting, PlannerKey: "gone"},
	}
	scenes := []models.PlannerSceneInfo{{Key: "k1", Name: "lakeside"}}

	merged, orphans := mergePlannerScenes(projects, scenes)

	// The scene still lives planner-side, so its waiting mirror stays hidden.
	// A waiting project whose scene vanished keeps showing up.
	require.Len(t, merged, 1)
	assert.Equal(t, 2, merged[0].ID)
	assert.Empty(t, orphans)
}

func TestMergePlannerScenesReportsOrphanScenes(t *testing.T) {
	projects := []models.Project{{ID: 1, Status: models.StatusCreated, PlannerKey: "k1"}}
	scenes := []models.PlannerSceneInfo{
		{Key: "k1", Name: "lakeside"},
		{Key: "new1", Name: "fresh scene", Thumbnail: "thumb.jpg"},
	}

	merged, orphans := mergePlannerScenes(projects, scenes)

	require.Len(t, merged, 1)
	require.Len(t, orphans, 1)
	assert.Equal(t, "new1", orphans[0].Key)
	assert.Equal(t, "fresh scene", orphans[0].Name)
}

func TestDeleteBlockedByHiring(t *testing.T) {
	assert.True(t, deleteBlockedByHiring(1, models.StatusAccepted))
	assert.True(t, deleteBlockedByHiring(3, models.StatusPending))
	assert.False(t, deleteBlockedByHiring(0, models.StatusAccepted))
	// Completed projects may be deleted even with lingering requests.
	assert.False(t, deleteBlockedByHiring(2, models.StatusCompleted))
}

func TestNeedsPlannerRefresh(t *testing.T) {
	assert.True(t, needsPlannerRefresh(&models.Project{PlannerKey: "k1"}))
	assert.False(t, needsPlannerRefresh(&models.Project{PlannerKey: "k1", IsManual: true}))
	assert.False(t, needsPlannerRefresh(&models.Project{}))
}

func TestTruncateLabelCountsRunes(t *testing.T) {
	assert.Equal(t, "short name", truncateLabel("short name", 30))
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaa...", truncateLabel("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", 30))

	long := "Фасадный проект с очень длинным названием"
	got := truncateLabel(long, 30)
	runes := []rune(got)
	assert.Len(t, runes, 30)
	assert.Equal(t, []rune(long)[:27], runes[:27])
}
