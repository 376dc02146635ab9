package storefront

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellTransitions(t *testing.T) {
	s := NewShell()
	assert.Equal(t, ShellState{}, s.State())

	s.LogIn()
	s.SelectHospital("냥냥 동물병원")
	s.ToggleMenu()
	assert.Equal(t, ShellState{LoggedIn: true, Hospital: "냥냥 동물병원", MenuOpen: true}, s.State())

	s.ToggleMenu()
	assert.False(t, s.State().MenuOpen)
	s.ToggleMenu()
	s.CloseMenu()
	s.CloseMenu()
	assert.False(t, s.State().MenuOpen)

	s.ClearHospital()
	s.LogOut()
	assert.Equal(t, ShellState{}, s.State())
}
