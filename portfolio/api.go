package portfolio

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/meshbot/logging"
)

// API response messages of the contact endpoint.
const (
	ContactSentMessage      = "Your message has been sent successfully!"
	ContactMissingMessage   = "Please fill in all the fields."
	ContactBadMethodMessage = "Invalid request method."
)

// Notifier is told about new contact messages.
type Notifier interface {
	NotifyContact(ctx context.Context, c Contact) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, c Contact) error

// NotifyContact implements Notifier.
func (f NotifierFunc) NotifyContact(ctx context.Context, c Contact) error { return f(ctx, c) }

// FormatContact renders a contact message for a chat notification.
func FormatContact(c Contact) string {
	return "New contact message\n" +
		"Name: " + c.Name + "\n" +
		"Email: " + c.Email + "\n" +
		"Message: " + c.Message
}

// APIOptions configure the HTTP API.
type APIOptions struct {
	// Notifier, if set, receives every stored contact message. Notification
	// failures are logged and do not fail the request.
	Notifier Notifier
	Logger   logging.Logger
}

// RegisterRoutes mounts the API under /api on r.
func RegisterRoutes(r gin.IRouter, store *Store, optFns ...func(o *APIOptions)) {
	opts := APIOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	api := r.Group("/api")
	api.GET("/", handleOverview())
	api.GET("/home/", handleSection(func(ctx context.Context) (any, error) { return store.Home(ctx) }, opts.Logger))
	api.GET("/about/", handleSection(func(ctx context.Context) (any, error) { return store.About(ctx) }, opts.Logger))
	api.GET("/skilled/", handleSection(func(ctx context.Context) (any, error) { return store.Skilled(ctx) }, opts.Logger))
	api.GET("/skills/", handleSection(func(ctx context.Context) (any, error) { return store.Skills(ctx) }, opts.Logger))
	api.GET("/work/", handleSection(func(ctx context.Context) (any, error) { return store.Works(ctx) }, opts.Logger))
	api.Any("/contact/", handleContact(store, opts))
}

// Sections lists the read-only endpoints relative to /api/.
var Sections = []string{"home", "about", "skilled", "skills", "work"}

func handleOverview() gin.HandlerFunc {
	return func(c *gin.Context) {
		overview := make(gin.H, len(Sections))
		for _, s := range Sections {
			overview[s] = "/api/" + s + "/"
		}
		c.JSON(http.StatusOK, overview)
	}
}

func handleSection(load func(ctx context.Context) (any, error), logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := load(c.Request.Context())
		if err != nil {
			logger.Error("portfolio.api.failed", "path", c.FullPath(), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, data)
	}
}

func handleContact(store *Store, opts APIOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.JSON(http.StatusMethodNotAllowed, gin.H{"error": ContactBadMethodMessage})
			return
		}

		contact := Contact{
			Name:    strings.TrimSpace(c.PostForm("name")),
			Email:   strings.TrimSpace(c.PostForm("email")),
			Message: strings.TrimSpace(c.PostForm("message")),
		}
		if contact.Name == "" || contact.Email == "" || contact.Message == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": ContactMissingMessage})
			return
		}

		ctx := c.Request.Context()
		if err := store.CreateContact(ctx, &contact); err != nil {
			opts.Logger.Error("portfolio.contact.store_failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if opts.Notifier != nil {
			if err := opts.Notifier.NotifyContact(ctx, contact); err != nil {
				opts.Logger.Warn("portfolio.contact.notify_failed", "contact_id", contact.ID, "error", err)
			}
		}

		c.JSON(http.StatusOK, gin.H{"message": ContactSentMessage})
	}
}
