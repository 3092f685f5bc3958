package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/chat"
)

type chatApi struct {
	svc      *chat.Service
	uploader chat.Uploader
	validate *validator.Validate
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := chatApi{
		svc:      deps.ChatSvc,
		uploader: deps.Uploader,
		validate: deps.Validate,
	}

	cg := g.Group("/chat", jwt)
	cg.POST("/resolve", api.resolve)
	cg.GET("/conversations", api.conversations)
	cg.GET("/conversations/:id", api.retrieve)
	cg.GET("/conversations/:id/messages", api.messages)
	cg.POST("/conversations/:id/messages", api.send)
	cg.POST("/conversations/:id/attachments", api.upload)
}

// Handlers

func (api *chatApi) resolve(ctx echo.Context) error {
	var ref chat.PeerRef
	if err := ctx.Bind(&ref); err != nil {
		return errors.Wrap(err, "binding to PeerRef")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	conv, err := api.svc.Resolve(ctx.Request().Context(), claims.Subject, ref)
	if err != nil {
		return errors.Wrap(err, "resolving conversation")
	}
	return ctx.JSON(http.StatusOK, conv)
}

func (api *chatApi) conversations(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	convs, err := api.svc.Conversations(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying conversations")
	}
	if convs == nil {
		convs = []chat.ConversationSummary{}
	}
	return ctx.JSON(http.StatusOK, convs)
}

func (api *chatApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	conv, err := api.svc.GetConversation(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting conversation")
	}
	return ctx.JSON(http.StatusOK, conv)
}

// messages returns the newest page of a conversation's messages, newest
// first; clients reverse into display order.
func (api *chatApi) messages(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	reqCtx := ctx.Request().Context()
	if _, err = api.svc.GetConversation(reqCtx, ctx.Param("id"), claims.Subject); err != nil {
		return errors.Wrap(err, "getting conversation")
	}

	page := new(Pagination)
	page.Bind(ctx)

	msgs, err := api.svc.FetchMessages(reqCtx, ctx.Param("id"), page.Limit, page.Offset)
	if err != nil {
		return errors.Wrap(err, "fetching messages")
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *chatApi) send(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data chat.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	data.ConversationID = ctx.Param("id")
	data.SenderID = claims.Subject

	msg, err := api.svc.CreateMessage(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

// upload stores a multipart file and returns the attachment reference to be
// carried by a subsequent message.
func (api *chatApi) upload(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	reqCtx := ctx.Request().Context()
	if _, err = api.svc.GetConversation(reqCtx, ctx.Param("id"), claims.Subject); err != nil {
		return errors.Wrap(err, "getting conversation")
	}

	fileHdr, err := ctx.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "a 'file' form field is required")
	}
	file, err := fileHdr.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer file.Close()

	ref, err := api.uploader.Upload(reqCtx, ctx.Param("id"), chat.Upload{
		Name:        fileHdr.Filename,
		ContentType: fileHdr.Header.Get("Content-Type"),
		Size:        fileHdr.Size,
		Body:        file,
	})
	if err != nil {
		return errors.Wrapf(chat.ErrUpload, "storing attachment: %v", err)
	}
	return ctx.JSON(http.StatusCreated, ref)
}
