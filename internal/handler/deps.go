package handler

import (
	"hzlobby/internal/app/chat"
	"hzlobby/internal/configs"
)

// AppDeps bundles what the HTTP handlers need.
type AppDeps struct {
	Coordinator *chat.Coordinator
	Config      *configs.AppConfig
}
