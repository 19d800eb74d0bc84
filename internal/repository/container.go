package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatserver/internal/domain"
	apperrors "chatserver/pkg/errors"
	"chatserver/pkg/logger"
)

type ContainerRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ContainerRecord, error)
}

type containerRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewContainerRepository(db *pgxpool.Pool, log logger.Logger) ContainerRepository {
	return &containerRepository{db: db, log: log}
}

func (r *containerRepository) GetByID(ctx context.Context, id string) (*domain.ContainerRecord, error) {
	query := `
		SELECT id, title, moderated, created_at
		FROM meeting_containers
		WHERE id = $1
	`

	container := &domain.ContainerRecord{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&container.ID, &container.Title, &container.Moderated, &container.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrContainerNotFound
		}
		r.log.Error("Failed to get meeting container", "error", err, "container_id", id)
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT username, role
		FROM container_members
		WHERE container_id = $1
		ORDER BY username
	`, id)
	if err != nil {
		r.log.Error("Failed to get container members", "error", err, "container_id", id)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var username, role string
		if err := rows.Scan(&username, &role); err != nil {
			return nil, err
		}
		container.Members = append(container.Members, username)
		if role == domain.ContainerRoleModerator {
			container.Moderators = append(container.Moderators, username)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return container, nil
}
