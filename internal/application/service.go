package application

import (
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/lock"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/repository"
)

// Service runs the session use cases. Every mutation of one session goes
// through locks, so load, mutate and save never interleave for that session.
type Service struct {
	repo        repository.Repository
	writer      Writer
	locks       *lock.Sessions
	transformer domain.Transformer
}

func New(repo repository.Repository, writer Writer, locks *lock.Sessions, transformer domain.Transformer) *Service {
	return &Service{repo: repo, writer: writer, locks: locks, transformer: transformer}
}
