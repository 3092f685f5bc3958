package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/presence"
)

type presenceApi struct {
	repo     presence.Repository
	feed     presence.Feed
	logger   core.Logger
	upgrader websocket.Upgrader
}

func registerPresenceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := presenceApi{
		repo:   deps.PresenceRepo,
		feed:   deps.PresenceFeed,
		logger: deps.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	pg := g.Group("/presence", jwt)
	pg.GET("", api.snapshot)
	pg.GET("/:id", api.retrieve)
	pg.POST("/heartbeat", api.heartbeat)
	pg.GET("/feed", api.streamFeed)
}

// Handlers

func (api *presenceApi) snapshot(ctx echo.Context) error {
	records, err := api.repo.FetchSnapshot(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "fetching presence snapshot")
	}
	if records == nil {
		records = []presence.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *presenceApi) retrieve(ctx echo.Context) error {
	rec, err := api.repo.GetRecord(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting presence record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

// heartbeat marks the calling user online now; clients post it on a fixed
// cadence while the chat surface is open.
func (api *presenceApi) heartbeat(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err = api.repo.WriteHeartbeat(ctx.Request().Context(), claims.Subject, time.Now().UTC()); err != nil {
		return errors.Wrap(err, "writing heartbeat")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// streamFeed upgrades to a websocket and pushes every presence change to the
// client until either side goes away.
func (api *presenceApi) streamFeed(ctx echo.Context) error {
	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading to websocket")
	}
	defer conn.Close()

	wsCtx, cancel := context.WithCancel(ctx.Request().Context())
	defer cancel()

	updates, err := api.feed.Subscribe(wsCtx)
	if err != nil {
		return errors.Wrap(err, "subscribing to presence feed")
	}

	// drain reads so client close frames are seen
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for rec := range updates {
		if err := conn.WriteJSON(rec); err != nil {
			return nil // client gone
		}
	}
	return nil
}
