package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/execdash/jobs"
)

type stubEnqueuer struct {
	task *asynq.Task
}

func (s *stubEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.task = task
	return &asynq.TaskInfo{ID: "abc", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (s *stubEnqueuer) Close() error { return nil }

type stubInspector struct{}

func (stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return &asynq.QueueInfo{Queue: queue, Pending: 1, Scheduled: 1}, nil
}

func (stubInspector) ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return []*asynq.TaskInfo{{
		ID:            "sched-1",
		Type:          jobs.TaskDashboardGenerate,
		NextProcessAt: time.Date(2026, 3, 20, 6, 0, 0, 0, time.UTC),
	}}, nil
}

func (stubInspector) Close() error { return nil }

func TestTriggerQueuesManualRun(t *testing.T) {
	enq := &stubEnqueuer{}
	c := &JobsCLI{client: enq, inspector: stubInspector{}}
	info, err := c.Trigger(context.Background(), "ops", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "abc", info.ID)

	var payload jobs.DashboardGeneratePayload
	require.NoError(t, json.Unmarshal(enq.task.Payload(), &payload))
	require.Equal(t, jobs.TriggerManual, payload.Trigger)
	require.Equal(t, "ops", payload.RequestedBy)
	require.NoError(t, c.Close())
}

func TestPrintQueue(t *testing.T) {
	c := &JobsCLI{client: &stubEnqueuer{}, inspector: stubInspector{}}
	var out bytes.Buffer
	require.NoError(t, PrintQueue(context.Background(), &out, c, 5))
	require.Contains(t, out.String(), `"pending": 1`)
	require.Contains(t, out.String(), "scheduled sched-1 dashboard:generate at 2026-03-20 06:00:00 UTC")
}

func TestNilJobsCLI(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), "", 0)
	require.Error(t, err)
	_, err = c.InspectQueue(context.Background())
	require.Error(t, err)
}

func TestWriteMappingUsesPolicy(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteMapping(&out, ""))
	rows, err := csv.NewReader(strings.NewReader(out.String())).ReadAll()
	require.NoError(t, err)
	require.Equal(t, "Component", rows[0][0])
	require.Greater(t, len(rows), 5)

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("top_n: 5\n"), 0o644))
	out.Reset()
	require.NoError(t, WriteMapping(&out, path))
	require.Contains(t, out.String(), "top 5")
}

func TestMappingCommandWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.csv")
	root := NewRootCommand("test")
	root.SetArgs([]string{"mapping", "-o", path})
	require.NoError(t, root.Execute())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "Component,IDO,Fields,Calculation"))
}
