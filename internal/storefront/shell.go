package storefront

import "sync"

// Shell is the application-wide UI state shared by every page: whether the
// user is logged in, which clinic is selected and whether the mobile menu is
// open. Fields change only through the methods below.
type Shell struct {
	mu       sync.RWMutex
	loggedIn bool
	hospital string
	menuOpen bool
}

// ShellState is a copy of Shell's fields.
type ShellState struct {
	LoggedIn bool
	Hospital string
	MenuOpen bool
}

func NewShell() *Shell {
	return &Shell{}
}

func (s *Shell) LogIn() {
	s.mu.Lock()
	s.loggedIn = true
	s.mu.Unlock()
}

func (s *Shell) LogOut() {
	s.mu.Lock()
	s.loggedIn = false
	s.mu.Unlock()
}

func (s *Shell) SelectHospital(name string) {
	s.mu.Lock()
	s.hospital = name
	s.mu.Unlock()
}

func (s *Shell) ClearHospital() {
	s.mu.Lock()
	s.hospital = ""
	s.mu.Unlock()
}

func (s *Shell) ToggleMenu() {
	s.mu.Lock()
	s.menuOpen = !s.menuOpen
	s.mu.Unlock()
}

func (s *Shell) CloseMenu() {
	s.mu.Lock()
	s.menuOpen = false
	s.mu.Unlock()
}

func (s *Shell) State() ShellState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ShellState{LoggedIn: s.loggedIn, Hospital: s.hospital, MenuOpen: s.menuOpen}
}
