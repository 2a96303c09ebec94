package maskservice

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

type taskResponse struct {
	Task Task `json:"task"`
}

type progressResponse struct {
	Progress    float64 `json:"progress"`
	EtaRelative float64 `json:"eta_relative"`
	Status      string  `json:"status"`
}

type resultsResponse struct {
	Message    string   `json:"message"`
	ImagePaths []string `json:"image_paths"`
}

// GenerateImage queues a generation task, polls it until it reaches a
// terminal state and returns the resolved result image URLs. onProgress, when
// non-nil, is called after every successful status poll.
func (c *Client) GenerateImage(ctx context.Context, req GenerateRequest, onProgress func(Progress)) ([]string, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if err := c.check(req); err != nil {
		return nil, err
	}
	task, err := c.queue(ctx, req)
	if err != nil {
		return nil, err
	}
	c.logger.Info("generation queued", zap.String("task", task.ID), zap.Int("position", task.Position))
	if err := c.waitTask(ctx, task.ID, onProgress); err != nil {
		return nil, err
	}
	return c.results(ctx, task.ID)
}

func (c *Client) queue(ctx context.Context, req GenerateRequest) (Task, error) {
	palette := ""
	if len(req.Palette) > 0 {
		b, err := json.Marshal(strings.Join(req.Palette, ","))
		if err != nil {
			return Task{}, &ValidationError{Field: "palette", Reason: err.Error()}
		}
		palette = string(b)
	}
	form := map[string]string{
		"prompt":           req.Prompt,
		"number_of_images": strconv.Itoa(req.Count),
		"color_palette":    palette,
	}
	files := map[string]file{
		"style_reference": {name: "style_reference.png", data: req.StyleReference},
	}
	path := "generate-first-image"
	if req.Next {
		path = "generate-next-image"
		form["init_image"] = req.InitImage
		form["combined_mask"] = req.CombinedMask
	} else {
		files["base_image"] = file{name: "base_image.png", data: req.BaseImage}
	}

	var out taskResponse
	if err := c.post(ctx, "generate", path, form, files, &out); err != nil {
		return Task{}, err
	}
	if out.Task.ID == "" {
		return Task{}, &ServiceError{Op: "generate", Status: http.StatusOK, Message: "response has no task id"}
	}
	return out.Task, nil
}

func (c *Client) waitTask(ctx context.Context, taskID string, onProgress func(Progress)) error {
	for attempt := 1; attempt <= c.progressAttempts; attempt++ {
		var task Task
		if _, err := c.get(ctx, "task-status", "generate-image/task-status", taskID, &task); err != nil {
			return err
		}
		switch task.Status {
		case TaskSuccess:
			return nil
		case TaskFailed:
			return &ServiceError{Op: "generate", Status: http.StatusInternalServerError, Message: "task " + taskID + " failed"}
		}

		p := Progress{TaskID: taskID, Status: task.Status, Position: task.Position, Attempt: attempt}
		if task.Status == TaskRunning {
			var pr progressResponse
			if _, err := c.get(ctx, "image-status", "generate-image/image-status", taskID, &pr); err != nil {
				c.logger.Debug("progress unavailable", zap.String("task", taskID), zap.Error(err))
			} else {
				p.Fraction = pr.Progress
				p.ETA = pr.EtaRelative
				if pr.Status != "" {
					p.Status = pr.Status
				}
			}
		}
		if onProgress != nil {
			onProgress(p)
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return err
		}
	}
	return &TimeoutError{Op: "generate", TaskID: taskID, Attempts: c.progressAttempts}
}

func (c *Client) results(ctx context.Context, taskID string) ([]string, error) {
	for attempt := 1; attempt <= c.resultAttempts; attempt++ {
		var out resultsResponse
		resp, err := c.get(ctx, "results", "generate-image/get-results", taskID, &out)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() != http.StatusAccepted {
			paths := make([]string, len(out.ImagePaths))
			for i, p := range out.ImagePaths {
				paths[i] = c.Resolve(p)
			}
			return paths, nil
		}
		c.logger.Debug("results not ready", zap.String("task", taskID), zap.String("message", out.Message))
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}
	}
	return nil, &TimeoutError{Op: "results", TaskID: taskID, Attempts: c.resultAttempts}
}
