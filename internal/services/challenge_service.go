package services

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/internal/models"
	pgrepo "github.com/yoockh/yoointerview/internal/repositories/postgres"
	"github.com/yoockh/yoointerview/internal/sandbox"
	"github.com/yoockh/yoointerview/internal/utils"
)

const DefaultDifficulty = "easy"

var builtinChallenges = []models.Challenge{
	{
		Title:       "FizzBuzz",
		Language:    sandbox.LangPython,
		Description: "Write a function that prints numbers from 1 to 20. For multiples of 3, print 'Fizz'. For multiples of 5, print 'Buzz'. For multiples of both, print 'FizzBuzz'.",
		StarterCode: "def fizzbuzz():\n    # Your code here\n    pass\n\nfizzbuzz()",
		Difficulty:  DefaultDifficulty,
	},
	{
		Title:       "Palindrome Checker",
		Language:    sandbox.LangPython,
		Description: "Write a function that checks if a given string is a palindrome (reads the same forwards and backwards). Ignore case and spaces.",
		StarterCode: "def is_palindrome(s):\n    # Your code here\n    pass\n\nprint(is_palindrome('A man a plan a canal Panama'))",
		Difficulty:  DefaultDifficulty,
	},
	{
		Title:       "List Sum",
		Language:    sandbox.LangPython,
		Description: "Write a function that takes a list of numbers and returns their sum without using the built-in sum() function.",
		StarterCode: "def list_sum(numbers):\n    # Your code here\n    pass\n\nprint(list_sum([1, 2, 3, 4, 5]))",
		Difficulty:  DefaultDifficulty,
	},
	{
		Title:       "Array Sum",
		Language:    sandbox.LangC,
		Description: "Write a C program that calculates the sum of an array of integers.",
		StarterCode: "#include <stdio.h>\n\nint array_sum(int arr[], int size) {\n    // Your code here\n    return 0;\n}\n\nint main() {\n    int numbers[] = {1, 2, 3, 4, 5};\n    int result = array_sum(numbers, 5);\n    printf(\"Sum: %d\\n\", result);\n    return 0;\n}",
		Difficulty:  DefaultDifficulty,
	},
	{
		Title:       "Factorial",
		Language:    sandbox.LangC,
		Description: "Write a C function to calculate the factorial of a number.",
		StarterCode: "#include <stdio.h>\n\nint factorial(int n) {\n    // Your code here\n    return 0;\n}\n\nint main() {\n    printf(\"Factorial of 5: %d\\n\", factorial(5));\n    return 0;\n}",
		Difficulty:  DefaultDifficulty,
	},
}

// ChallengeService picks coding challenges from the built-in set merged
// with the Postgres catalog. It satisfies interview.ChallengeSource.
type ChallengeService interface {
	Pick(ctx context.Context, language string) (*models.Challenge, error)
	Candidates(ctx context.Context, language, difficulty string) ([]models.Challenge, error)
	Add(ctx context.Context, c models.Challenge, tags []string) (*models.CatalogChallenge, error)
}

type challengeService struct {
	repo pgrepo.ChallengeRepository // optional
	log  *logrus.Logger
	pick func(n int) int
}

func NewChallengeService(repo pgrepo.ChallengeRepository, log *logrus.Logger) ChallengeService {
	return &challengeService{repo: repo, log: log, pick: rand.IntN}
}

func (s *challengeService) Pick(ctx context.Context, language string) (*models.Challenge, error) {
	const op = "ChallengeService.Pick"

	all, err := s.Candidates(ctx, language, DefaultDifficulty)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, utils.E(utils.CodeNotFound, op, "no challenge for language "+language, nil)
	}
	c := all[s.pick(len(all))]
	return &c, nil
}

// Candidates lists every challenge for language and difficulty. A catalog
// outage degrades to the built-in set.
func (s *challengeService) Candidates(ctx context.Context, language, difficulty string) ([]models.Challenge, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	var out []models.Challenge
	for _, c := range builtinChallenges {
		if c.Language == language && c.Difficulty == difficulty {
			out = append(out, c)
		}
	}
	if s.repo == nil {
		return out, nil
	}

	rows, err := s.repo.ListByLanguage(ctx, language, difficulty)
	if err != nil {
		s.log.WithError(err).WithField("language", language).Warn("challenge catalog unavailable, using built-ins")
		return out, nil
	}
	for _, r := range rows {
		out = append(out, r.Challenge())
	}
	return out, nil
}

func (s *challengeService) Add(ctx context.Context, c models.Challenge, tags []string) (*models.CatalogChallenge, error) {
	const op = "ChallengeService.Add"

	if s.repo == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "challenge catalog is not configured", nil)
	}
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	if !sandbox.Supported(c.Language) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "language must be python or c", nil)
	}
	if strings.TrimSpace(c.Title) == "" || strings.TrimSpace(c.Description) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "title and description are required", nil)
	}
	if c.Difficulty == "" {
		c.Difficulty = DefaultDifficulty
	}

	row := &models.CatalogChallenge{
		ID:          uuid.NewString(),
		Language:    c.Language,
		Difficulty:  c.Difficulty,
		Title:       c.Title,
		Description: c.Description,
		StarterCode: c.StarterCode,
		Tags:        pq.StringArray(tags),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to insert challenge", err)
	}
	return row, nil
}
