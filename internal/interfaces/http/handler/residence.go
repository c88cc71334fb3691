package handler

import (
	"github.com/gin-gonic/gin"

	residenceapp "github.com/dormitory/backend/internal/application/residence"
)

// ResidenceHandler handles the student and room registers that invoices refer to
type ResidenceHandler struct {
	BaseHandler
	residenceService *residenceapp.ResidenceService
}

// NewResidenceHandler creates a new ResidenceHandler
func NewResidenceHandler(residenceService *residenceapp.ResidenceService) *ResidenceHandler {
	return &ResidenceHandler{residenceService: residenceService}
}

// CreateStudent godoc
// @Summary      Register a student profile
// @Tags         students
// @Accept       json
// @Produce      json
// @Param        request body residenceapp.CreateStudentRequest true "Student"
// @Success      201 {object} dto.Response
// @Failure      409 {object} dto.ErrorResponse
// @Router       /students [post]
func (h *ResidenceHandler) CreateStudent(c *gin.Context) {
	var req residenceapp.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	student, err := h.residenceService.CreateStudent(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, student)
}

// GetStudent godoc
// @Summary      Get a student profile
// @Tags         students
// @Produce      json
// @Param        id path string true "Student profile ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.ErrorResponse
// @Router       /students/{id} [get]
func (h *ResidenceHandler) GetStudent(c *gin.Context) {
	id, ok := h.parseID(c, "id", "student")
	if !ok {
		return
	}

	student, err := h.residenceService.GetStudent(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, student)
}

// ListStudents godoc
// @Summary      List student profiles
// @Tags         students
// @Produce      json
// @Param        search query string false "Code or name"
// @Param        room_id query string false "Room"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response
// @Router       /students [get]
func (h *ResidenceHandler) ListStudents(c *gin.Context) {
	var filter residenceapp.StudentListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	students, total, err := h.residenceService.ListStudents(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, students, total, filter.Page, filter.PageSize)
}

// CreateRoom godoc
// @Summary      Register a room
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        request body residenceapp.CreateRoomRequest true "Room"
// @Success      201 {object} dto.Response
// @Failure      409 {object} dto.ErrorResponse
// @Router       /rooms [post]
func (h *ResidenceHandler) CreateRoom(c *gin.Context) {
	var req residenceapp.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	room, err := h.residenceService.CreateRoom(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, room)
}

// GetRoom godoc
// @Summary      Get a room with its occupant count
// @Tags         rooms
// @Produce      json
// @Param        id path string true "Room ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.ErrorResponse
// @Router       /rooms/{id} [get]
func (h *ResidenceHandler) GetRoom(c *gin.Context) {
	id, ok := h.parseID(c, "id", "room")
	if !ok {
		return
	}

	room, err := h.residenceService.GetRoom(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, room)
}

// ListRooms godoc
// @Summary      List rooms
// @Tags         rooms
// @Produce      json
// @Param        building query string false "Building"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response
// @Router       /rooms [get]
func (h *ResidenceHandler) ListRooms(c *gin.Context) {
	var filter residenceapp.RoomListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	rooms, total, err := h.residenceService.ListRooms(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, rooms, total, filter.Page, filter.PageSize)
}
