package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	residenceapp "github.com/dormitory/backend/internal/application/residence"
	"github.com/dormitory/backend/internal/interfaces/http/dto"
)

func TestResidenceHandler_Rooms(t *testing.T) {
	api := newTestAPI(t)

	var room residenceapp.RoomResponse
	w := api.do(http.MethodPost, "/api/v1/rooms", map[string]any{
		"building":    "B2",
		"room_number": "204",
		"floor":       2,
		"capacity":    1,
	})
	decodeData(t, w, http.StatusCreated, &room)
	assert.Equal(t, "B2-204", room.Label)

	var student residenceapp.StudentResponse
	w = api.do(http.MethodPost, "/api/v1/students", map[string]any{
		"student_code": "SV100",
		"full_name":    "Le Van C",
		"room_id":      room.ID,
	})
	decodeData(t, w, http.StatusCreated, &student)
	require.NotNil(t, student.RoomID)
	assert.Equal(t, room.ID, *student.RoomID)

	t.Run("occupants are counted", func(t *testing.T) {
		var fetched residenceapp.RoomResponse
		decodeData(t, api.do(http.MethodGet, "/api/v1/rooms/"+room.ID.String(), nil), http.StatusOK, &fetched)
		require.NotNil(t, fetched.Occupants)
		assert.Equal(t, int64(1), *fetched.Occupants)
	})

	t.Run("full room", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/students", map[string]any{
			"student_code": "SV101",
			"full_name":    "Pham Thi D",
			"room_id":      room.ID,
		})
		decodeError(t, w, http.StatusConflict, "CONFLICT")
	})

	t.Run("list by building", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/rooms", map[string]any{"building": "C1", "room_number": "101", "capacity": 4})
		decodeData(t, w, http.StatusCreated, nil)

		var rooms []residenceapp.RoomResponse
		env := decodeData(t, api.do(http.MethodGet, "/api/v1/rooms?building=B2", nil), http.StatusOK, &rooms)
		require.Len(t, rooms, 1)
		assert.Equal(t, room.ID, rooms[0].ID)
		assert.Equal(t, int64(1), env.Meta.Total)
	})

	t.Run("missing capacity", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/rooms", map[string]any{"building": "B2", "room_number": "205"})
		resp := decodeError(t, w, http.StatusBadRequest, dto.ErrCodeValidation)
		require.Len(t, resp.Details, 1)
		assert.Equal(t, "capacity", resp.Details[0].Field)
	})
}

func TestResidenceHandler_Students(t *testing.T) {
	api := newTestAPI(t)
	student := api.createStudent("SV001")
	api.createStudent("SV002")

	var fetched residenceapp.StudentResponse
	decodeData(t, api.do(http.MethodGet, "/api/v1/students/"+student.ID.String(), nil), http.StatusOK, &fetched)
	assert.Equal(t, "SV001", fetched.StudentCode)
	assert.Equal(t, "sv001@example.com", fetched.Email)

	var students []residenceapp.StudentResponse
	env := decodeData(t, api.do(http.MethodGet, "/api/v1/students?page=2&page_size=1", nil), http.StatusOK, &students)
	assert.Len(t, students, 1)
	assert.Equal(t, int64(2), env.Meta.Total)
	assert.Equal(t, 2, env.Meta.Page)

	w := api.do(http.MethodPost, "/api/v1/students", map[string]any{"student_code": "SV001", "full_name": "Duplicate"})
	decodeError(t, w, http.StatusConflict, "ALREADY_EXISTS")

	w = api.do(http.MethodPost, "/api/v1/students", map[string]any{"student_code": "SV003", "full_name": "Bad Mail", "email": "nope"})
	decodeError(t, w, http.StatusBadRequest, dto.ErrCodeValidation)

	w = api.do(http.MethodGet, "/api/v1/students/xyz", nil)
	resp := decodeError(t, w, http.StatusBadRequest, dto.ErrCodeBadRequest)
	assert.Equal(t, "Invalid student ID format", resp.Message)
}
