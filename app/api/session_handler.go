package api

import (
	"errors"
	"mime/multipart"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"mwanga/app/chat"
	"mwanga/app/middleware"
	"mwanga/loader"
	"mwanga/logger"
	"mwanga/types"
)

const uploadField = "pdf_file"

type SessionHandler struct {
	svc       *chat.Service
	cookieTTL time.Duration
	logger    *zap.Logger
}

func NewSessionHandler(svc *chat.Service, cookieTTL time.Duration, l *zap.Logger) *SessionHandler {
	return &SessionHandler{
		svc:       svc,
		cookieTTL: cookieTTL,
		logger:    logger.OrNop(l),
	}
}

// HandleCreate opens a session from the upload form. Without a file part the session
// uses the default catalog when one is configured.
func (h *SessionHandler) HandleCreate(c *fiber.Ctx) error {
	var params types.SessionParams
	if err := c.BodyParser(&params); err != nil {
		return NewError(fiber.StatusBadRequest, "invalid form")
	}
	if verrs := types.Validate(&params); len(verrs) > 0 {
		return NewValidationError(verrs)
	}

	fh, err := formFile(c)
	if err != nil && !(errors.Is(err, errNoFilePart) && h.svc.HasCatalog()) {
		return err
	}

	var name, path string
	if fh != nil {
		if name, path, err = h.save(c, fh); err != nil {
			return err
		}
	}

	sess, text, err := h.svc.Open(c.UserContext(), params, name, path)
	if err != nil {
		h.svc.Discard(path)
		return err
	}
	setSessionCookie(c, sess.ID, h.cookieTTL)

	return c.Status(fiber.StatusCreated).JSON(sessionResponse(sess.ID.String(), text))
}

func (h *SessionHandler) HandleGet(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	sess, text, err := h.svc.Info(c.UserContext(), id)
	if err != nil {
		return mapStoreErr(id, err)
	}
	resp := sessionResponse(id.String(), text)
	return c.JSON(types.SessionInfo{
		Session:  *sess,
		Pages:    resp.Pages,
		Ingested: resp.Ingested,
		Error:    resp.Error,
	})
}

// HandleReplaceDocument swaps the session's document for a new upload.
func (h *SessionHandler) HandleReplaceDocument(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	fh, err := formFile(c)
	if err != nil {
		return err
	}
	if err := h.svc.Exists(c.UserContext(), id); err != nil {
		return mapStoreErr(id, err)
	}
	name, path, err := h.save(c, fh)
	if err != nil {
		return err
	}

	_, text, err := h.svc.Attach(c.UserContext(), id, name, path)
	if err != nil {
		h.svc.Discard(path)
		return mapStoreErr(id, err)
	}
	return c.JSON(sessionResponse(id.String(), text))
}

func (h *SessionHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Close(c.UserContext(), id); err != nil {
		return mapStoreErr(id, err)
	}
	c.ClearCookie(middleware.SessionCookie)
	return c.JSON(fiber.Map{"result": "ok"})
}

func (h *SessionHandler) save(c *fiber.Ctx, fh *multipart.FileHeader) (string, string, error) {
	path, err := h.svc.UploadPath(fh.Filename)
	if err != nil {
		return "", "", err
	}
	if err := c.SaveFile(fh, path); err != nil {
		h.svc.Discard(path)
		return "", "", err
	}
	h.logger.Debug("upload saved", zap.String("file", fh.Filename), zap.String("path", path), zap.Int64("size", fh.Size))
	return fh.Filename, path, nil
}

var (
	errNoFilePart     = NewError(fiber.StatusBadRequest, "No file part in the request")
	errNoSelectedFile = NewError(fiber.StatusBadRequest, "No selected file")
)

func formFile(c *fiber.Ctx) (*multipart.FileHeader, error) {
	fh, err := c.FormFile(uploadField)
	if errors.Is(err, fasthttp.ErrMissingFile) {
		return nil, errNoFilePart
	}
	if err != nil {
		return nil, NewError(fiber.StatusBadRequest, "invalid form")
	}
	if fh.Filename == "" || fh.Size == 0 {
		return nil, errNoSelectedFile
	}
	return fh, nil
}

func sessionResponse(id string, text loader.Text) types.SessionResponse {
	resp := types.SessionResponse{
		SessionID: id,
		Pages:     len(text.Pages),
		Ingested:  text.Usable(),
	}
	if text.Err != nil {
		resp.Error = text.Err.Error()
	}
	return resp
}
