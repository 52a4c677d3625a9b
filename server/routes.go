package main

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/catalog"
	"github.com/meikuraledutech/workflow/internal/ctxlog"
)

type server struct {
	catalog *catalog.Cache
	store   workflow.Store
	oracle  workflow.Validator
	logger  *slog.Logger
}

// statusOf maps an error code to an HTTP status. Uncoded errors are 500.
func statusOf(err error) int {
	switch workflow.Code(err) {
	case "":
		return 500
	case workflow.CodeNodeNotFound, workflow.CodeEdgeNotFound,
		workflow.CodeComponentTypeNotFound, workflow.CodeWorkflowNotFound:
		return 404
	case workflow.CodePortAlreadyConnected, workflow.CodeDuplicateID:
		return 409
	case workflow.CodeValidationUnavailable, workflow.CodeCatalogUnavailable:
		return 503
	}
	return 422
}

// fail writes err as {"error", "code", "metadata"}.
func fail(c fiber.Ctx, err error) error {
	status := statusOf(err)
	body := fiber.Map{"error": err.Error()}
	var ge *goerrors.Error
	if errors.As(err, &ge) {
		body["error"] = ge.Message
		body["code"] = ge.TextCode
		if len(ge.Metadata) > 0 {
			body["metadata"] = ge.Metadata
		}
	}
	log := ctxlog.FromContext(c.Context())
	if status >= 500 {
		log.Error("request failed", "status", status, "error", err)
	} else {
		log.Debug("request rejected", "status", status, "error", err)
	}
	return c.Status(status).JSON(body)
}

func invalidBody(err error) error {
	return workflow.Errorf(workflow.ErrInvalidWorkflow, "invalid body", err, nil)
}

func (s *server) requestLogger(c fiber.Ctx) error {
	l := s.logger.With("request_id", uuid.NewString(), "method", c.Method(), "path", c.Path())
	c.SetContext(ctxlog.WithLogger(c.Context(), l))
	start := time.Now()
	err := c.Next()
	l.Debug("request served", "status", c.Response().StatusCode(), "duration", time.Since(start))
	return err
}

// validate runs the oracle on d. An oracle failure is reported as
// VALIDATION_UNAVAILABLE.
func (s *server) validate(c fiber.Ctx, d workflow.Definition) (workflow.Verdict, error) {
	v, err := s.oracle.Validate(c.Context(), d)
	if err != nil {
		return v, workflow.Errorf(workflow.ErrValidationUnavailable, "validation unavailable", err, nil)
	}
	if v.Errors == nil {
		v.Errors = []string{}
	}
	return v, nil
}

// types returns the loaded catalog, loading it if a previous attempt
// failed.
func (s *server) types(c fiber.Ctx) ([]catalog.ComponentType, error) {
	if s.catalog.Loaded() {
		return s.catalog.Types(), nil
	}
	return s.catalog.Load(c.Context())
}

func newApp(s *server) *fiber.App {
	app := fiber.New()
	app.Use(s.requestLogger)

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := s.store.CreateSchema(c.Context()); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := s.store.DropSchema(c.Context()); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	// ── Components ────────────────────────────────────────────────────
	app.Get("/components", func(c fiber.Ctx) error {
		types, err := s.types(c)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(types)
	})

	app.Get("/components/:type", func(c fiber.Ctx) error {
		if _, err := s.types(c); err != nil {
			return fail(c, err)
		}
		ct, err := s.catalog.Lookup(c.Params("type"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(ct)
	})

	// A body that does not decode is judged invalid rather than rejected.
	app.Post("/components/validate/workflow", func(c fiber.Ctx) error {
		var d workflow.Definition
		if err := c.Bind().JSON(&d); err != nil {
			return c.JSON(workflow.Verdict{Errors: []string{"Validation error: " + err.Error()}})
		}
		v, err := s.validate(c, d)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(v)
	})

	// ── Workflows ─────────────────────────────────────────────────────
	app.Post("/workflows", func(c fiber.Ctx) error {
		var w workflow.Workflow
		if err := c.Bind().JSON(&w); err != nil {
			return fail(c, invalidBody(err))
		}
		w.Name = strings.TrimSpace(w.Name)
		if w.Name == "" {
			return fail(c, workflow.Errorf(workflow.ErrInvalidWorkflow, "workflow name is required", nil, nil))
		}
		v, err := s.validate(c, w.Definition())
		if err != nil {
			return fail(c, err)
		}
		w.IsValid = v.IsValid
		created, err := s.store.CreateWorkflow(c.Context(), &w)
		if err != nil {
			return fail(c, err)
		}
		ctxlog.FromContext(c.Context()).Info("workflow created", "workflow_id", created.ID, "is_valid", created.IsValid)
		return c.Status(201).JSON(created)
	})

	app.Get("/workflows", func(c fiber.Ctx) error {
		list, err := s.store.ListWorkflows(c.Context())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(list)
	})

	app.Get("/workflows/:id", func(c fiber.Ctx) error {
		w, err := s.store.GetWorkflow(c.Context(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(w)
	})

	// Changing components or connections recomputes is_valid.
	app.Put("/workflows/:id", func(c fiber.Ctx) error {
		var u workflow.WorkflowUpdate
		if err := c.Bind().JSON(&u); err != nil {
			return fail(c, invalidBody(err))
		}
		if u.Name != nil {
			name := strings.TrimSpace(*u.Name)
			if name == "" {
				return fail(c, workflow.Errorf(workflow.ErrInvalidWorkflow, "workflow name is required", nil, nil))
			}
			u.Name = &name
		}
		id := c.Params("id")

		var isValid *bool
		if u.Components != nil || u.Connections != nil {
			current, err := s.store.GetWorkflow(c.Context(), id)
			if err != nil {
				return fail(c, err)
			}
			d := current.Definition()
			if u.Components != nil {
				d.Components = *u.Components
			}
			if u.Connections != nil {
				d.Connections = *u.Connections
			}
			v, err := s.validate(c, d)
			if err != nil {
				return fail(c, err)
			}
			isValid = &v.IsValid
		}

		updated, err := s.store.UpdateWorkflow(c.Context(), id, u, isValid)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(updated)
	})

	app.Delete("/workflows/:id", func(c fiber.Ctx) error {
		if err := s.store.DeleteWorkflow(c.Context(), c.Params("id")); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "workflow deleted"})
	})

	return app
}
