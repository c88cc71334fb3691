package residence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoom(t *testing.T) {
	room, err := NewRoom(" A ", " 101 ", 1, 4)
	require.NoError(t, err)
	assert.Equal(t, "A-101", room.Label())

	_, err = NewRoom("", "101", 1, 4)
	assert.Error(t, err)
	_, err = NewRoom("A", "", 1, 4)
	assert.Error(t, err)
	_, err = NewRoom("A", "101", 1, 0)
	assert.Error(t, err)
}

func TestNewStudentProfile(t *testing.T) {
	t.Run("normalises fields", func(t *testing.T) {
		s, err := NewStudentProfile(" SV001 ", " Nguyen Van A ", " A@Example.com ", "0900")
		require.NoError(t, err)
		assert.Equal(t, "SV001", s.StudentCode)
		assert.Equal(t, "Nguyen Van A", s.FullName)
		assert.Equal(t, "a@example.com", s.Email)
		assert.Nil(t, s.RoomID)
	})

	t.Run("rejects bad email", func(t *testing.T) {
		_, err := NewStudentProfile("SV001", "A", "not-an-email", "")
		assert.Error(t, err)
	})

	t.Run("rejects missing code", func(t *testing.T) {
		_, err := NewStudentProfile("", "A", "", "")
		assert.Error(t, err)
	})

	t.Run("assign and vacate room", func(t *testing.T) {
		s, err := NewStudentProfile("SV002", "B", "", "")
		require.NoError(t, err)
		roomID := uuid.New()
		s.AssignRoom(roomID)
		require.NotNil(t, s.RoomID)
		assert.Equal(t, roomID, *s.RoomID)
		s.Vacate()
		assert.Nil(t, s.RoomID)
	})
}
