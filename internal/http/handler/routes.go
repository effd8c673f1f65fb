package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imagecollector/internal/model"
	"imagecollector/internal/repository"
	"imagecollector/internal/service"
)

const healthTimeout = 2 * time.Second

// Deps are the collaborators the HTTP routes need. Pinger and Gatherer are
// optional.
type Deps struct {
	Service     service.ImageService
	StorageType string
	Pinger      repository.Pinger
	Gatherer    prometheus.Gatherer
	OpenAPIPath string
}

// CollectRequest is the body of POST /images. URL is accepted as an alias
// of SourceURL.
type CollectRequest struct {
	SourceURL string `json:"source_url"`
	URL       string `json:"url"`
	FileName  string `json:"file_name"`
	ID        string `json:"id"`
}

func (r CollectRequest) toModel() model.ImageRequest {
	src := r.SourceURL
	if src == "" {
		src = r.URL
	}
	return model.ImageRequest{ID: r.ID, SourceURL: src, FileName: r.FileName}
}

// ImageListResponse is the body of GET /images.
type ImageListResponse struct {
	Data  []model.Image `json:"data"`
	Total int           `json:"total"`
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/openapi.yaml", OpenAPISpec(d.OpenAPIPath))
	app.Get("/docs", DocsPage())
	app.Get("/swagger/*", swagger.New(swagger.Config{URL: "/openapi.yaml"}))

	app.Get("/health", HealthCheck(d.StorageType, d.Pinger))
	app.Get("/healthz", LivenessProbe())
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	app.Post("/images", CollectImage(d.Service))
	app.Get("/images", ListImages(d.Service))
	app.Get("/images/:id", GetImage(d.Service))
}

// HealthCheck reports the storage backend and, when pinger is set, whether
// it is reachable.
func HealthCheck(storageType string, pinger repository.Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
			defer cancel()
			if err := pinger.Ping(ctx); err != nil {
				return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "storage unavailable")
			}
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":       "healthy",
			"storage_type": storageType,
		})
	}
}

// LivenessProbe answers 200 as long as the process serves HTTP.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

func CollectImage(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CollectRequest
		if err := c.BodyParser(&body); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_REQUEST", "request body must be a JSON object")
		}

		img, err := svc.Collect(c.UserContext(), body.toModel())
		if err != nil {
			switch {
			case errors.Is(err, model.ErrSourceURLRequired),
				errors.Is(err, model.ErrInvalidSourceURL),
				errors.Is(err, model.ErrInvalidFileName):
				return writeError(c, fiber.StatusBadRequest, "INVALID_REQUEST", err.Error())
			case repository.IsFetchError(err):
				return writeError(c, fiber.StatusBadGateway, "FETCH_FAILED", "could not download the source image")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		return c.Status(fiber.StatusCreated).JSON(img)
	}
}

func ListImages(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := svc.ListAll(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		if items == nil {
			items = []model.Image{}
		}
		return c.JSON(ImageListResponse{Data: items, Total: len(items)})
	}
}

func GetImage(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		img, err := svc.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "image not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(img)
	}
}

func OpenAPISpec(path string) fiber.Handler {
	if path == "" {
		path = "openapi.yaml"
	}
	return func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile(path)
	}
}

// DocsPage sends browsers to the Swagger UI mounted under /swagger.
func DocsPage() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Redirect("/swagger/index.html")
	}
}
