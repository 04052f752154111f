package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/videorag/videorag-indexing-service/internal/domain/entity"
	"github.com/videorag/videorag-indexing-service/internal/domain/port"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	query := `
		INSERT INTO indexing_jobs (
			id, user_id, video_name, video_key, status, stage, progress,
			message, file_size, shot_count, segment_count, video_duration,
			error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.VideoName, job.VideoKey, string(job.Status),
		job.Stage, job.Progress, job.Message, job.FileSize,
		job.ShotCount, job.SegmentCount, job.VideoDuration,
		job.ErrorMessage, job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.Job) error {
	query := `
		UPDATE indexing_jobs SET
			status=$2, stage=$3, progress=$4, message=$5, shot_count=$6,
			segment_count=$7, video_duration=$8, error_message=$9,
			updated_at=$10, completed_at=$11
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.Stage, job.Progress, job.Message,
		job.ShotCount, job.SegmentCount, job.VideoDuration,
		job.ErrorMessage, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	query := `
		SELECT id, user_id, video_name, video_key, status, stage, progress,
			message, file_size, shot_count, segment_count, video_duration,
			error_message, created_at, updated_at, completed_at
		FROM indexing_jobs WHERE id=$1`

	job := &entity.Job{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.VideoName, &job.VideoKey, &status,
		&job.Stage, &job.Progress, &job.Message, &job.FileSize,
		&job.ShotCount, &job.SegmentCount, &job.VideoDuration,
		&job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, port.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}

func (r *JobRepository) List(ctx context.Context, limit int) ([]*entity.Job, error) {
	query := `
		SELECT id, user_id, video_name, video_key, status, stage, progress,
			message, file_size, shot_count, segment_count, video_duration,
			error_message, created_at, updated_at, completed_at
		FROM indexing_jobs ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		job := &entity.Job{}
		var status string
		if err := rows.Scan(
			&job.ID, &job.UserID, &job.VideoName, &job.VideoKey, &status,
			&job.Stage, &job.Progress, &job.Message, &job.FileSize,
			&job.ShotCount, &job.SegmentCount, &job.VideoDuration,
			&job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Status = entity.JobStatus(status)
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}
