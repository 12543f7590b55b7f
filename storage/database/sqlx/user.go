package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ibdp/core"
	"github.com/trezcool/ibdp/core/user"
)

const (
	userTable        = `"user"`
	studentTable     = "student_profile"
	teacherTable     = "teacher_profile"
	coordinatorTable = "coordinator_profile"
	assessmentTable  = "assessment"

	uniqueViolation     = pq.ErrorCode("23505")
	foreignKeyViolation = pq.ErrorCode("23503")

	emailConstraint         = "user_email_key"
	studentNumberConstraint = "student_profile_student_number_key"
)

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	userColumns = []string{"id", "email", "first_name", "last_name", "role", "password_hash", "created_at", "updated_at"}

	userOrderColumns = map[string]string{
		"firstName": "first_name",
		"lastName":  "last_name",
		"email":     "email",
		"role":      "role",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	}
	studentOrderColumns = map[string]string{
		"firstName":     "u.first_name",
		"lastName":      "u.last_name",
		"email":         "u.email",
		"studentNumber": "sp.student_number",
		"cohort":        "sp.cohort",
		"casHours":      "sp.cas_hours",
		"averageScore":  "a.average_score",
		"createdAt":     "u.created_at",
	}
)

type (
	userRepository struct {
		db   *sqlx.DB
		exec sqlx.ExtContext // db, or the transaction in flight
	}

	studentProfileRow struct {
		UserID        string         `db:"user_id"`
		StudentNumber string         `db:"student_number"`
		Cohort        string         `db:"cohort"`
		Subjects      pq.StringArray `db:"subjects"`
		CASHours      int            `db:"cas_hours"`
		CASGoal       int            `db:"cas_goal"`
	}

	teacherProfileRow struct {
		UserID   string         `db:"user_id"`
		Subjects pq.StringArray `db:"subjects"`
	}

	studentRow struct {
		user.User
		studentProfileRow
		AverageScore    null.Float64 `db:"average_score"`
		AssessmentCount int          `db:"assessment_count"`
	}
)

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db, exec: db}
}

func (row studentProfileRow) profile() user.StudentProfile {
	subjects := []string(row.Subjects)
	if subjects == nil {
		subjects = []string{}
	}
	return user.StudentProfile{
		UserID:        row.UserID,
		StudentNumber: row.StudentNumber,
		Cohort:        row.Cohort,
		Subjects:      subjects,
		CASHours:      row.CASHours,
		CASGoal:       row.CASGoal,
	}
}

func (repo *userRepository) InTx(ctx context.Context, fn func(tx user.Repository) error) (err error) {
	if _, ok := repo.exec.(*sqlx.Tx); ok { // already in a transaction
		return fn(repo)
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&userRepository{db: repo.db, exec: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

func (repo *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	q, args, err := psql.Select("count(*)").From(userTable).Where("lower(email) = lower(?)", email).ToSql()
	if err != nil {
		return false, err
	}
	var count int
	if err = sqlx.GetContext(ctx, repo.exec, &count, q, args...); err != nil {
		return false, errors.Wrap(err, "counting users by email")
	}
	return count > 0, nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q, args, err := psql.Insert(userTable).
		Columns(userColumns...).
		Values(usr.ID, usr.Email, usr.FirstName, usr.LastName, string(usr.Role), usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt).
		ToSql()
	if err != nil {
		return user.User{}, err
	}
	if _, err = repo.exec.ExecContext(ctx, q, args...); err != nil {
		return user.User{}, trapErr(err)
	}
	return usr, nil
}

func (repo *userRepository) CreateProfile(ctx context.Context, profile user.Profile) error {
	var stmt sq.InsertBuilder
	switch p := profile.(type) {
	case user.StudentProfile:
		stmt = psql.Insert(studentTable).
			Columns("user_id", "student_number", "cohort", "subjects", "cas_hours", "cas_goal").
			Values(p.UserID, p.StudentNumber, p.Cohort, pq.Array(nonNil(p.Subjects)), p.CASHours, p.CASGoal)
	case user.TeacherProfile:
		stmt = psql.Insert(teacherTable).
			Columns("user_id", "subjects").
			Values(p.UserID, pq.Array(nonNil(p.Subjects)))
	case user.CoordinatorProfile:
		stmt = psql.Insert(coordinatorTable).Columns("user_id").Values(p.UserID)
	default:
		return errors.Errorf("unsupported profile %T", profile)
	}

	q, args, err := stmt.ToSql()
	if err != nil {
		return err
	}
	if _, err = repo.exec.ExecContext(ctx, q, args...); err != nil {
		return trapErr(err)
	}
	return nil
}

func (repo *userRepository) getUser(ctx context.Context, pred interface{}, args ...interface{}) (user.User, error) {
	q, qargs, err := psql.Select(userColumns...).From(userTable).Where(pred, args...).Limit(1).ToSql()
	if err != nil {
		return user.User{}, err
	}
	var usr user.User
	if err = sqlx.GetContext(ctx, repo.exec, &usr, q, qargs...); err != nil {
		return user.User{}, trapErr(err)
	}
	return usr, nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, "lower(email) = lower(?)", email)
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, sq.Eq{"id": id})
}

func (repo *userRepository) GetProfile(ctx context.Context, userID string, role user.Role) (user.Profile, error) {
	switch role {
	case user.RoleStudent:
		var row studentProfileRow
		if err := repo.getProfile(ctx, &row, studentTable, userID,
			"user_id", "student_number", "cohort", "subjects", "cas_hours", "cas_goal"); err != nil {
			return nil, err
		}
		return row.profile(), nil
	case user.RoleTeacher:
		var row teacherProfileRow
		if err := repo.getProfile(ctx, &row, teacherTable, userID, "user_id", "subjects"); err != nil {
			return nil, err
		}
		return user.TeacherProfile{UserID: row.UserID, Subjects: nonNil(row.Subjects)}, nil
	case user.RoleCoordinator:
		var p user.CoordinatorProfile
		if err := repo.getProfile(ctx, &p, coordinatorTable, userID, "user_id"); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, user.ErrNotFound
}

func (repo *userRepository) getProfile(ctx context.Context, dest interface{}, table, userID string, columns ...string) error {
	q, args, err := psql.Select(columns...).From(table).Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return err
	}
	return trapErr(sqlx.GetContext(ctx, repo.exec, dest, q, args...))
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	stmt := psql.Select(userColumns...).From(userTable)

	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		stmt = stmt.Where(sq.Or{
			sq.Expr("first_name ILIKE ?", pattern),
			sq.Expr("last_name ILIKE ?", pattern),
			sq.Expr("email ILIKE ?", pattern),
		})
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			roles = append(roles, string(r))
		}
		stmt = stmt.Where(sq.Eq{"role": roles})
	}

	clauses := core.MapOrderings(ordering, userOrderColumns)
	if len(clauses) == 0 {
		clauses = []string{"created_at DESC"}
	}

	q, args, err := stmt.OrderBy(clauses...).ToSql()
	if err != nil {
		return nil, err
	}
	users := make([]user.User, 0)
	if err = sqlx.SelectContext(ctx, repo.exec, &users, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return users, nil
}

func (repo *userRepository) QueryStudents(ctx context.Context, filter user.StudentFilter, ordering []core.DBOrdering) ([]user.StudentRecord, error) {
	averages := "(SELECT student_id, (SUM(score) / SUM(max_score) * 100)::float8 AS average_score, COUNT(*) AS assessment_count " +
		"FROM " + assessmentTable + " GROUP BY student_id) a ON a.student_id = u.id"

	stmt := psql.Select(
		"u.id", "u.email", "u.first_name", "u.last_name", "u.role", "u.password_hash", "u.created_at", "u.updated_at",
		"sp.user_id", "sp.student_number", "sp.cohort", "sp.subjects", "sp.cas_hours", "sp.cas_goal",
		"a.average_score", "COALESCE(a.assessment_count, 0) AS assessment_count",
	).
		From(userTable + " u").
		Join(studentTable + " sp ON sp.user_id = u.id").
		LeftJoin(averages).
		Where(sq.Eq{"u.role": string(user.RoleStudent)})

	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		stmt = stmt.Where(sq.Or{
			sq.Expr("u.first_name ILIKE ?", pattern),
			sq.Expr("u.last_name ILIKE ?", pattern),
			sq.Expr("u.email ILIKE ?", pattern),
			sq.Expr("sp.student_number ILIKE ?", pattern),
		})
	}
	if filter.Cohort != "" {
		stmt = stmt.Where(sq.Eq{"sp.cohort": filter.Cohort})
	}

	clauses := core.MapOrderings(ordering, studentOrderColumns)
	if len(clauses) == 0 {
		clauses = []string{"u.last_name ASC", "u.first_name ASC"}
	}

	q, args, err := stmt.OrderBy(clauses...).ToSql()
	if err != nil {
		return nil, err
	}
	var rows []studentRow
	if err = sqlx.SelectContext(ctx, repo.exec, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	recs := make([]user.StudentRecord, 0, len(rows))
	for _, row := range rows {
		rec := user.StudentRecord{
			User:            row.User,
			Profile:         row.studentProfileRow.profile(),
			AssessmentCount: row.AssessmentCount,
		}
		if row.AverageScore.Valid {
			avg := row.AverageScore.Float64
			rec.AverageScore = &avg
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (repo *userRepository) SetPasswordHash(ctx context.Context, id string, hash []byte, updatedAt time.Time) error {
	q, args, err := psql.Update(userTable).
		Set("password_hash", hash).
		Set("updated_at", updatedAt).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := repo.exec.ExecContext(ctx, q, args...)
	if err != nil {
		return trapErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *userRepository) CreateAssessment(ctx context.Context, a user.Assessment) (user.Assessment, error) {
	q, args, err := psql.Insert(assessmentTable).
		Columns("id", "student_id", "subject", "title", "score", "max_score", "taken_at").
		Values(a.ID, a.StudentID, a.Subject, a.Title, a.Score, a.MaxScore, a.TakenAt).
		ToSql()
	if err != nil {
		return user.Assessment{}, err
	}
	if _, err = repo.exec.ExecContext(ctx, q, args...); err != nil {
		return user.Assessment{}, trapErr(err)
	}
	return a, nil
}

// trapErr maps driver errors to repository errors.
func trapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			switch pqErr.Constraint {
			case emailConstraint:
				return user.ErrEmailExists
			case studentNumberConstraint:
				return user.ErrStudentNumberExists
			}
		case foreignKeyViolation:
			return user.ErrNotFound
		}
	}
	return err
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
