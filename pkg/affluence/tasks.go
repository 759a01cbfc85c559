package affluence

import (
	"context"
	"net/url"
)

// Tasks returns every task on offer. Failures are returned as is; no
// substitute list is made up.
func (c *Client) Tasks(ctx context.Context) ([]Task, error) {
	var out []Task
	if err := c.Get(ctx, "/tasks/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MyTasks returns the tasks the current user has taken.
func (c *Client) MyTasks(ctx context.Context) ([]UserTask, error) {
	var out []UserTask
	if err := c.Get(ctx, "/tasks/my-tasks", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TaskBoard returns all tasks with the current user's status for each.
func (c *Client) TaskBoard(ctx context.Context) ([]TaskView, error) {
	tasks, err := c.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	mine, err := c.MyTasks(ctx)
	if err != nil {
		return nil, err
	}
	return MergeTaskStatus(tasks, mine), nil
}

// TakeTask marks a task as taken by the current user.
func (c *Client) TakeTask(ctx context.Context, taskID string) (*TaskActionResponse, error) {
	var out TaskActionResponse
	if err := c.Post(ctx, "/tasks/"+url.PathEscape(taskID)+"/take", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClaimTask claims the reward of a taken task.
func (c *Client) ClaimTask(ctx context.Context, taskID string) (*TaskActionResponse, error) {
	var out TaskActionResponse
	if err := c.Post(ctx, "/tasks/"+url.PathEscape(taskID)+"/claim", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
