package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/evotodo/todo-api/internal/modules/serializer"
	"github.com/evotodo/todo-api/internal/modules/service"
)

type TaskHandler struct {
	svc service.TaskService
}

func NewTaskHandler(s service.TaskService) *TaskHandler {
	return &TaskHandler{svc: s}
}

func taskNotFound(id int64) string {
	return fmt.Sprintf("Task %d not found or access forbidden", id)
}

type ListTasksReq struct {
	Status string `form:"status,default=all" json:"status" example:"pending"`
	Sort   string `form:"sort,default=created" json:"sort" example:"priority"`
	Search string `form:"search" json:"search" example:"milk"`
	Page   int    `form:"page,default=1" json:"page" binding:"min=1" example:"1"`
	Limit  int    `form:"limit,default=20" json:"limit" binding:"min=1,max=100" example:"20"`
}

// ListTasks godoc
//
//	@Summary		List tasks
//	@Description	List the user's tasks with status filter, sort, search and pagination. completed and pending count the returned page.
//	@Tags			task
//	@Produce		json
//	@Param			user_id	path	string	true	"User ID"
//	@Param			status	query	string	false	"all, pending or completed"	default(all)
//	@Param			sort	query	string	false	"created, title, updated, priority or due_date"	default(created)
//	@Param			search	query	string	false	"Case-insensitive match on title and description"
//	@Param			page	query	integer	false	"Page number, starting at 1"	default(1)
//	@Param			limit	query	integer	false	"Page size, max 100"	default(20)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.ListTasksOutput}
//	@Router			/{user_id}/tasks [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	req := ListTasksReq{}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}

	out, err := h.svc.List(c.Request.Context(), service.ListTasksInput{
		UserID: user,
		Status: req.Status,
		Sort:   req.Sort,
		Search: req.Search,
		Page:   req.Page,
		Limit:  req.Limit,
	})
	if err != nil {
		writeServiceErr(c, err, "")
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

type CreateTaskReq struct {
	Title       string   `json:"title" binding:"required" example:"Buy milk"`
	Description *string  `json:"description" example:"2 litres"`
	Priority    string   `json:"priority" example:"high"`
	DueDate     string   `json:"due_date" example:"2026-11-01"`
	Tags        []string `json:"tags" example:"errands,home"`
	Completed   bool     `json:"completed"`
}

// CreateTask godoc
//
//	@Summary		Create task
//	@Description	Create a task owned by the user
//	@Tags			task
//	@Accept			json
//	@Produce		json
//	@Param			user_id	path	string					true	"User ID"
//	@Param			payload	body	handler.CreateTaskReq	true	"CreateTask payload"
//	@Security		BearerAuth
//	@Success		201	{object}	serializer.Response{data=model.Task}
//	@Router			/{user_id}/tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	req := CreateTaskReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}

	due, err := service.ParseDueDate(req.DueDate)
	if err != nil {
		writeServiceErr(c, err, "")
		return
	}
	t, err := h.svc.Create(c.Request.Context(), service.CreateTaskInput{
		UserID:      user,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     due,
		Tags:        req.Tags,
		Completed:   req.Completed,
	})
	if err != nil {
		writeServiceErr(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, serializer.Response{Data: t})
}

// GetTask godoc
//
//	@Summary		Get task
//	@Tags			task
//	@Produce		json
//	@Param			user_id	path	string	true	"User ID"
//	@Param			task_id	path	integer	true	"Task ID"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Task}
//	@Failure		404	{object}	serializer.Response
//	@Router			/{user_id}/tasks/{task_id} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := pathID(c, "task_id")
	if !ok {
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}

	t, err := h.svc.Get(c.Request.Context(), user, id)
	if err != nil {
		writeServiceErr(c, err, taskNotFound(id))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: t})
}

// UpdateTaskReq changes only the fields present. An empty due_date clears
// it; an empty tags array clears the tags.
type UpdateTaskReq struct {
	Title       *string   `json:"title" example:"Buy oat milk"`
	Description *string   `json:"description"`
	Priority    *string   `json:"priority" example:"low"`
	DueDate     *string   `json:"due_date" example:"2026-11-02T09:00:00Z"`
	Tags        *[]string `json:"tags"`
	Completed   *bool     `json:"completed"`
}

// UpdateTask godoc
//
//	@Summary		Update task
//	@Description	Partially update a task. Omitted fields are left unchanged.
//	@Tags			task
//	@Accept			json
//	@Produce		json
//	@Param			user_id	path	string					true	"User ID"
//	@Param			task_id	path	integer					true	"Task ID"
//	@Param			payload	body	handler.UpdateTaskReq	true	"UpdateTask payload"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Task}
//	@Router			/{user_id}/tasks/{task_id} [put]
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := pathID(c, "task_id")
	if !ok {
		return
	}
	req := UpdateTaskReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}

	in := service.UpdateTaskInput{
		UserID:      user,
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Tags:        req.Tags,
		Completed:   req.Completed,
	}
	if req.DueDate != nil {
		if strings.TrimSpace(*req.DueDate) == "" {
			in.ClearDue = true
		} else {
			due, err := service.ParseDueDate(*req.DueDate)
			if err != nil {
				writeServiceErr(c, err, "")
				return
			}
			in.DueDate = due
		}
	}

	t, err := h.svc.Update(c.Request.Context(), in)
	if err != nil {
		writeServiceErr(c, err, taskNotFound(id))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: t})
}

// DeleteTask godoc
//
//	@Summary		Delete task
//	@Tags			task
//	@Produce		json
//	@Param			user_id	path	string	true	"User ID"
//	@Param			task_id	path	integer	true	"Task ID"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/{user_id}/tasks/{task_id} [delete]
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := pathID(c, "task_id")
	if !ok {
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}

	deleted, err := h.svc.Delete(c.Request.Context(), user, id)
	if err != nil {
		writeServiceErr(c, err, "")
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, serializer.NotFoundErr(taskNotFound(id)))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Msg: "Task deleted successfully", Data: gin.H{"task_id": id}})
}

// ToggleComplete godoc
//
//	@Summary		Toggle task completion
//	@Tags			task
//	@Produce		json
//	@Param			user_id	path	string	true	"User ID"
//	@Param			task_id	path	integer	true	"Task ID"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Task}
//	@Router			/{user_id}/tasks/{task_id}/complete [patch]
func (h *TaskHandler) ToggleComplete(c *gin.Context) {
	id, ok := pathID(c, "task_id")
	if !ok {
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}

	t, err := h.svc.ToggleComplete(c.Request.Context(), user, id)
	if err != nil {
		writeServiceErr(c, err, taskNotFound(id))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: t})
}

type BulkDeleteReq struct {
	TaskIDs []int64 `json:"task_ids" binding:"required,min=1,max=100"`
}

// BulkDelete godoc
//
//	@Summary		Bulk delete tasks
//	@Description	Delete the listed tasks. Ids the user does not own are ignored.
//	@Tags			task
//	@Accept			json
//	@Produce		json
//	@Param			user_id	path	string					true	"User ID"
//	@Param			payload	body	handler.BulkDeleteReq	true	"BulkDelete payload"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response
//	@Router			/{user_id}/tasks/bulk/delete [post]
func (h *TaskHandler) BulkDelete(c *gin.Context) {
	req := BulkDeleteReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}

	n, err := h.svc.BulkDelete(c.Request.Context(), user, req.TaskIDs)
	if err != nil {
		writeServiceErr(c, err, "")
		return
	}
	c.JSON(http.StatusOK, serializer.Response{
		Msg:  fmt.Sprintf("Successfully deleted %d task(s)", n),
		Data: gin.H{"deleted_count": n},
	})
}

type BulkCompleteReq struct {
	TaskIDs []int64 `json:"task_ids" binding:"required,min=1,max=100"`
	// Defaults to true.
	Completed *bool `json:"completed"`
}

// BulkComplete godoc
//
//	@Summary		Bulk set completion
//	@Tags			task
//	@Accept			json
//	@Produce		json
//	@Param			user_id	path	string					true	"User ID"
//	@Param			payload	body	handler.BulkCompleteReq	true	"BulkComplete payload"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response
//	@Router			/{user_id}/tasks/bulk/complete [post]
func (h *TaskHandler) BulkComplete(c *gin.Context) {
	req := BulkCompleteReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}
	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}

	n, err := h.svc.BulkComplete(c.Request.Context(), user, req.TaskIDs, completed)
	if err != nil {
		writeServiceErr(c, err, "")
		return
	}
	c.JSON(http.StatusOK, serializer.Response{
		Msg:  fmt.Sprintf("Successfully updated %d task(s)", n),
		Data: gin.H{"updated_count": n, "completed": completed},
	})
}

// Stats godoc
//
//	@Summary		Task statistics
//	@Tags			task
//	@Produce		json
//	@Param			user_id	path	string	true	"User ID"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.TaskStats}
//	@Router			/{user_id}/tasks/stats [get]
func (h *TaskHandler) Stats(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	out, err := h.svc.Stats(c.Request.Context(), user)
	if err != nil {
		writeServiceErr(c, err, "")
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// ExportCSV godoc
//
//	@Summary		Export tasks as CSV
//	@Tags			task
//	@Produce		text/csv
//	@Param			user_id	path	string	true	"User ID"
//	@Security		BearerAuth
//	@Success		200	{file}	file
//	@Router			/{user_id}/tasks/export/csv [get]
func (h *TaskHandler) ExportCSV(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	data, err := h.svc.ExportCSV(c.Request.Context(), user)
	if err != nil {
		writeServiceErr(c, err, "")
		return
	}
	c.Header("Content-Disposition", "attachment; filename=tasks.csv")
	c.Data(http.StatusOK, "text/csv", data)
}

// ExportJSON godoc
//
//	@Summary		Export tasks as JSON
//	@Tags			task
//	@Produce		json
//	@Param			user_id	path	string	true	"User ID"
//	@Security		BearerAuth
//	@Success		200	{file}	file
//	@Router			/{user_id}/tasks/export/json [get]
func (h *TaskHandler) ExportJSON(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	data, err := h.svc.ExportJSON(c.Request.Context(), user)
	if err != nil {
		writeServiceErr(c, err, "")
		return
	}
	c.Header("Content-Disposition", "attachment; filename=tasks.json")
	c.Data(http.StatusOK, "application/json", data)
}

type ExportSnapshotReq struct {
	Format string `json:"format" example:"csv"`
}

// ExportSnapshot godoc
//
//	@Summary		Export tasks to object storage
//	@Description	Upload an export and return a pre-signed download URL. 503 when object storage is not configured.
//	@Tags			task
//	@Accept			json
//	@Produce		json
//	@Param			user_id	path	string						true	"User ID"
//	@Param			payload	body	handler.ExportSnapshotReq	false	"Export format, json by default"
//	@Security		BearerAuth
//	@Success		201	{object}	serializer.Response{data=service.ExportSnapshot}
//	@Failure		503	{object}	serializer.Response
//	@Router			/{user_id}/tasks/export/snapshot [post]
func (h *TaskHandler) ExportSnapshot(c *gin.Context) {
	req := ExportSnapshotReq{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
			return
		}
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}

	out, err := h.svc.ExportSnapshot(c.Request.Context(), user, req.Format)
	if err != nil {
		writeServiceErr(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, serializer.Response{Data: out})
}

// ImportJSON godoc
//
//	@Summary		Import tasks from JSON
//	@Description	Create one task per array element. Failing elements are reported in errors and do not stop the import.
//	@Tags			task
//	@Accept			json
//	@Produce		json
//	@Param			user_id	path	string					true	"User ID"
//	@Param			payload	body	[]service.ImportTaskItem	true	"Tasks to import"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.ImportResult}
//	@Router			/{user_id}/tasks/import/json [post]
func (h *TaskHandler) ImportJSON(c *gin.Context) {
	var items []service.ImportTaskItem
	if err := c.ShouldBindJSON(&items); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}

	out, err := h.svc.ImportJSON(c.Request.Context(), user, items)
	if err != nil {
		writeServiceErr(c, err, "")
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Msg: out.Message, Data: out})
}
