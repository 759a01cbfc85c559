package devapi

import (
	"fmt"
	"net/http"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []map[string]any
	for _, t := range s.st.resources["tasks"] {
		if status, _ := t["status"].(string); status == "" || status == "active" {
			out = append(out, t)
		}
	}
	respondJSON(w, http.StatusOK, nonNil(out))
}

type userTaskView struct {
	*userTask
	Task map[string]any `json:"task,omitempty"`
}

func (s *Server) handleMyTasks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userIDFromContext(r.Context())

	var out []userTaskView
	for _, ut := range s.st.userTasks {
		if ut.UserID != uid {
			continue
		}
		_, t := s.st.record("tasks", ut.TaskID)
		out = append(out, userTaskView{userTask: ut, Task: t})
	}
	respondJSON(w, http.StatusOK, nonNil(out))
}

// userTask returns the current user's entry for a task. Callers hold s.mu.
func (s *Server) userTask(uid, taskID int) *userTask {
	for _, ut := range s.st.userTasks {
		if ut.UserID == uid && ut.TaskID == taskID {
			return ut
		}
	}
	return nil
}

func (s *Server) handleTakeTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userIDFromContext(r.Context())

	if _, t := s.st.record("tasks", id); t == nil {
		respondDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	if s.userTask(uid, id) != nil {
		respondDetail(w, http.StatusBadRequest, "Task already taken")
		return
	}
	ut := &userTask{ID: s.st.id(), UserID: uid, TaskID: id, Status: "taken", TakenAt: ts(s.now())}
	s.st.userTasks = append(s.st.userTasks, ut)

	respondJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Task taken. Complete it and come back to claim your reward.",
		"user_task_id": ut.ID,
	})
}

func (s *Server) handleClaimTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.currentUser(r)

	_, t := s.st.record("tasks", id)
	if t == nil {
		respondDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	ut := s.userTask(u.ID, id)
	if ut == nil {
		respondDetail(w, http.StatusBadRequest, "Take the task before claiming it")
		return
	}
	if ut.Status == "completed" {
		respondDetail(w, http.StatusBadRequest, "Reward already claimed")
		return
	}

	amount := toFloat(t["amount"])
	balanceType, _ := t["reward_type"].(string)
	if balanceType == "" {
		balanceType = "activity"
	}
	now := s.now()
	ut.Status = "completed"
	ut.CompletedAt = ts(now)
	title, _ := t["title"].(string)
	s.st.credit(u, amount, balanceType, "Task reward: "+title, now)

	respondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       fmt.Sprintf("You earned %.2f", amount),
		"user_task_id":  ut.ID,
		"amount_earned": amount,
		"balance_type":  balanceType,
	})
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
