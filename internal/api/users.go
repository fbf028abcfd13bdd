package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eleven-am/todoapi/internal/model"
	"github.com/eleven-am/todoapi/internal/user"
)

// CheckEmail reports whether the email in the query string is already registered
func (h *Handler) CheckEmail(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		h.jsonError(c, http.StatusBadRequest, "email is required")
		return
	}

	dup, err := h.users.IsDuplicateEmail(c.Request.Context(), email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dup)
}

// SignUp accepts either a JSON body or a multipart form with a "user" JSON
// part and an optional "profileImage" file part.
func (h *Handler) SignUp(c *gin.Context) {
	var req user.SignUpRequest
	var profileKey string

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		raw := c.PostForm("user")
		if raw == "" {
			raw = readFilePart(c, "user")
		}
		if raw == "" {
			h.jsonError(c, http.StatusBadRequest, "user part is required")
			return
		}
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			h.jsonError(c, http.StatusBadRequest, "Invalid user part: "+err.Error())
			return
		}

		key, err := h.uploadProfile(c)
		if err != nil {
			h.fail(c, err)
			return
		}
		profileKey = key
	} else if err := c.ShouldBindJSON(&req); err != nil {
		h.jsonError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.users.SignUp(c.Request.Context(), &req, profileKey)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// readFilePart returns the content of a small part sent as a file, e.g. a JSON blob
func readFilePart(c *gin.Context, name string) string {
	header, err := c.FormFile(name)
	if err != nil {
		return ""
	}
	f, err := header.Open()
	if err != nil {
		return ""
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, 64<<10))
	if err != nil {
		return ""
	}
	return string(data)
}

// uploadProfile stores the optional profileImage part and returns its key
func (h *Handler) uploadProfile(c *gin.Context) (string, error) {
	header, err := c.FormFile("profileImage")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if header.Size > h.opts.MaxUploadSize {
		return "", errUploadTooLarge
	}

	f, err := header.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.opts.MaxUploadSize+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > h.opts.MaxUploadSize {
		return "", errUploadTooLarge
	}
	if len(data) == 0 {
		return "", nil
	}

	return h.users.UploadProfileImage(c.Request.Context(), data, header.Filename)
}

// SignIn exchanges credentials for a token. Unknown emails get the same 401 as wrong passwords.
func (h *Handler) SignIn(c *gin.Context) {
	var body struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.jsonError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.users.Authenticate(c.Request.Context(), body.Email, body.Password)
	if errors.Is(err, model.ErrUserNotFound) {
		err = user.ErrInvalidCredentials
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Promote upgrades the caller and returns a fresh token. The old token is evicted from the cache.
func (h *Handler) Promote(c *gin.Context) {
	p, err := principalFrom(c)
	if err != nil {
		h.jsonError(c, http.StatusUnauthorized, err.Error())
		return
	}

	resp, err := h.users.Promote(c.Request.Context(), p.Email)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.principals.Delete(c.GetString(tokenKey))
	c.JSON(http.StatusOK, resp)
}

// LoadProfile streams the caller's profile image
func (h *Handler) LoadProfile(c *gin.Context) {
	p, err := principalFrom(c)
	if err != nil {
		h.jsonError(c, http.StatusUnauthorized, err.Error())
		return
	}

	rc, key, err := h.users.LoadProfileImage(c.Request.Context(), p.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", "inline; filename="+strconv.Quote(key))
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}
