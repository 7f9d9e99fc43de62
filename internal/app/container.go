package app

import (
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/tafsirnet/internal/infrastructure/config"
	"github.com/eslsoft/tafsirnet/internal/infrastructure/server"
	"github.com/eslsoft/tafsirnet/internal/usecase"
)

// Container aggregates the application dependencies produced by Wire.
type Container struct {
	Config  *config.Config
	Logger  *logrus.Logger
	Server  *server.Server
	Usecase usecase.TafsirUsecase
}
