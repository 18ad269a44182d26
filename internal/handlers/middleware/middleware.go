package middleware

import (
	"turnover/config"
	"turnover/internal/repositories"
	"turnover/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

type Middleware struct {
	teamMemberRepo repositories.TeamMemberRepository
	auth           *services.AuthService
	Config         config.Config
	log            logger.Logger
}

func New(
	config config.Config,
	repos repositories.Repository,
	auth *services.AuthService,
) Middleware {
	return Middleware{
		teamMemberRepo: repos.TeamMember,
		auth:           auth,
		Config:         config,
		log:            logger.New("middleware"),
	}
}
