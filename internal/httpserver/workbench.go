package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/leica1994/dubverse/internal/dbstore"
)

func (s *Server) registerWorkbenchCommands(mux *http.ServeMux) {
	handle(mux, "/commands/create_workbench_task", s.createWorkbenchTask)
	handle(mux, "/commands/update_workbench_task_progress", s.updateWorkbenchTaskProgress)
	handle(mux, "/commands/list_workbench_tasks", s.listWorkbenchTasks)
	handle(mux, "/commands/delete_workbench_task", s.deleteWorkbenchTask)
}

type workbenchTaskResponse struct {
	Task *dbstore.WorkbenchTask `json:"task"`
}

func (s *Server) createWorkbenchTask(t dbstore.WorkbenchTask) (workbenchTaskResponse, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := s.app.Store.CreateWorkbenchTask(&t); err != nil {
		return workbenchTaskResponse{}, err
	}
	return workbenchTaskResponse{Task: &t}, nil
}

type workbenchProgressRequest struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

func (s *Server) updateWorkbenchTaskProgress(req workbenchProgressRequest) (okResponse, error) {
	if err := s.app.Store.UpdateWorkbenchTaskProgress(req.ID, req.Status, req.Progress); err != nil {
		return okResponse{}, err
	}
	return okResponse{OK: true}, nil
}

type workbenchTasksResponse struct {
	Tasks []*dbstore.WorkbenchTask `json:"tasks"`
}

func (s *Server) listWorkbenchTasks(req projectDirRequest) (workbenchTasksResponse, error) {
	tasks, err := s.app.Store.ListWorkbenchTasks(req.ProjectDir)
	return workbenchTasksResponse{Tasks: tasks}, err
}

func (s *Server) deleteWorkbenchTask(req idRequest) (okResponse, error) {
	if err := s.app.Store.DeleteWorkbenchTask(req.ID); err != nil {
		return okResponse{}, err
	}
	return okResponse{OK: true}, nil
}
