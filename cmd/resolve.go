package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/ports"
)

// Tables print shortened IDs, so commands accept any unique prefix.

func templateID(ctx context.Context, arg string) (string, error) {
	if _, err := app.templates.GetTemplate(ctx, arg); err == nil {
		return arg, nil
	} else if !errors.Is(err, domain.ErrTemplateNotFound) {
		return "", err
	}
	templates, err := app.templates.ListTemplates(ctx, nil)
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, len(templates))
	for _, t := range templates {
		ids = append(ids, t.ID)
	}
	return matchPrefix("template", arg, ids)
}

func instanceID(ctx context.Context, arg string) (string, error) {
	if _, err := app.instances.GetInstance(ctx, arg); err == nil {
		return arg, nil
	} else if !errors.Is(err, domain.ErrInstanceNotFound) {
		return "", err
	}
	instances, err := app.instances.ListInstances(ctx, ports.InstanceFilter{})
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, len(instances))
	for _, inst := range instances {
		ids = append(ids, inst.ID)
	}
	return matchPrefix("instance", arg, ids)
}

func matchPrefix(kind, prefix string, ids []string) (string, error) {
	var found []string
	if prefix != "" {
		for _, id := range ids {
			if strings.HasPrefix(id, prefix) {
				found = append(found, id)
			}
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%s not found: %s", kind, prefix)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%s ID %q is ambiguous (%d matches)", kind, prefix, len(found))
	}
}
