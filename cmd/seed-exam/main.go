package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sanjio/sanjio/internal/config"
	"github.com/sanjio/sanjio/internal/database"
	"github.com/sanjio/sanjio/internal/logger"
	"github.com/sanjio/sanjio/internal/model"
	"github.com/sanjio/sanjio/internal/repository"
)

func main() {
	path := flag.String("file", "exam.yaml", "Path to the exam definition file")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	f, err := os.Open(*path)
	if err != nil {
		log.Fatal().Err(err).Str("file", *path).Msg("Failed to open exam file")
	}
	def, err := parseExamFile(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Str("file", *path).Msg("Invalid exam file")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.PoolOptions{AppName: "sanjio-seed-exam", MaxConns: 2}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)

	// The exam stays a draft until every question is in place.
	exam := def.exam()
	if err := examRepo.Create(ctx, exam); err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}

	for _, q := range def.questions() {
		q.ExamID = exam.ID
		if err := questionRepo.Create(ctx, &q); err != nil {
			log.Fatal().Err(err).Int("order_index", q.OrderIndex).Msg("Failed to create question")
		}
	}

	if !def.Draft {
		if err := examRepo.SetStatus(ctx, exam.ID, model.ExamStatusPublished); err != nil {
			log.Fatal().Err(err).Msg("Failed to publish exam")
		}
	}

	log.Info().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(def.Questions)).
		Bool("published", !def.Draft).
		Msg("Exam seeded")
	fmt.Println(exam.ID)
}
