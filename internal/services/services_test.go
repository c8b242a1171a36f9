package services

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/mail"
	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testSecret = "test-secret"

// captureQueue records enqueued mail instead of sending it.
type captureQueue struct {
	mu   sync.Mutex
	msgs []mail.Message
}

func (q *captureQueue) Enqueue(ctx context.Context, msg mail.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
}

func (q *captureQueue) messages() []mail.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]mail.Message(nil), q.msgs...)
}

// fixedNow is the clock used by transaction and dashboard tests.
var fixedNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

type ServicesTestSuite struct {
	suite.Suite
	db    *storage.DB
	svc   *Services
	queue *captureQueue
	ctx   context.Context
	alice *models.User
	bob   *models.User
}

func (suite *ServicesTestSuite) SetupTest() {
	db, err := storage.NewDB(":memory:")
	require.NoError(suite.T(), err)
	suite.db = db
	suite.ctx = context.Background()
	suite.queue = &captureQueue{}
	suite.svc = New(db, Deps{
		Tokens:   auth.NewResetTokens(testSecret),
		Mail:     suite.queue,
		BaseURL:  "http://localhost:8080",
		Location: time.UTC,
	})
	suite.setNow(fixedNow)

	suite.alice, err = suite.svc.Auth.Register(suite.ctx, "alice", "alice-pass", "alice@example.com")
	require.NoError(suite.T(), err)
	suite.bob, err = suite.svc.Auth.Register(suite.ctx, "bob", "bob-pass", "bob@example.com")
	require.NoError(suite.T(), err)
}

func (suite *ServicesTestSuite) TearDownTest() {
	suite.db.Close()
}

func (suite *ServicesTestSuite) setNow(now time.Time) {
	clock := func() time.Time { return now }
	suite.svc.Transactions.now = clock
	suite.svc.Dashboard.now = clock
}

func (suite *ServicesTestSuite) category(userID int64, name string, typ models.TxType) *models.Category {
	c, err := suite.svc.Categories.Create(suite.ctx, userID, CategoryInput{Name: name, Type: string(typ)})
	require.NoError(suite.T(), err)
	return c
}

func (suite *ServicesTestSuite) transaction(userID int64, in TransactionInput) *models.Transaction {
	if in.Title == "" {
		in.Title = "item"
	}
	if in.PaymentMode == "" {
		in.PaymentMode = "Cash"
	}
	t, err := suite.svc.Transactions.Create(suite.ctx, userID, in)
	require.NoError(suite.T(), err)
	return t
}

func (suite *ServicesTestSuite) count(userID int64) int {
	n, err := suite.db.CountTransactions(suite.ctx, userID)
	require.NoError(suite.T(), err)
	return n
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

// --- auth ---

func (suite *ServicesTestSuite) TestRegisterRejectsDuplicateIdentity() {
	t := suite.T()

	_, err := suite.svc.Auth.Register(suite.ctx, "alice", "x", "other@example.com")
	assert.ErrorIs(t, err, ErrDuplicateIdentity)

	_, err = suite.svc.Auth.Register(suite.ctx, "carol", "x", " ALICE@example.com ")
	assert.ErrorIs(t, err, ErrDuplicateIdentity)

	_, err = suite.svc.Auth.Register(suite.ctx, "carol", "x", "carol@example.com")
	assert.NoError(t, err)
}

func (suite *ServicesTestSuite) TestRegisterValidatesInput() {
	t := suite.T()
	tests := []struct {
		name                      string
		username, password, email string
	}{
		{"missing username", " ", "pw", "x@example.com"},
		{"missing password", "carol", "", "x@example.com"},
		{"missing email", "carol", "pw", ""},
		{"malformed email", "carol", "pw", "not-an-email"},
		{"long username", strings.Repeat("u", 101), "pw", "x@example.com"},
		{"long email", "carol", "pw", strings.Repeat("e", 189) + "@example.com"},
		{"long password", "carol", strings.Repeat("p", 73), "x@example.com"},
	}
	for _, tt := range tests {
		_, err := suite.svc.Auth.Register(suite.ctx, tt.username, tt.password, tt.email)
		assert.ErrorIs(t, err, ErrInvalidInput, tt.name)
	}
}

func (suite *ServicesTestSuite) TestRegisterAcceptsFieldsAtLimit() {
	t := suite.T()
	username := strings.Repeat("u", 100)
	email := strings.Repeat("e", 188) + "@example.com"
	require.Len(t, email, 200)

	user, err := suite.svc.Auth.Register(suite.ctx, username, strings.Repeat("p", 72), email)
	require.NoError(t, err)
	assert.Equal(t, username, user.Username)

	_, err = suite.svc.Auth.Authenticate(suite.ctx, username, strings.Repeat("p", 72))
	assert.NoError(t, err)
}

func (suite *ServicesTestSuite) TestRegisterStoresHashNotPassword() {
	user, err := suite.db.GetUserByUsername(suite.ctx, "alice")
	require.NoError(suite.T(), err)
	assert.NotEqual(suite.T(), "alice-pass", user.PasswordHash)
	assert.True(suite.T(), auth.CheckPassword("alice-pass", user.PasswordHash))
}

func (suite *ServicesTestSuite) TestAuthenticate() {
	t := suite.T()

	session, err := suite.svc.Auth.Authenticate(suite.ctx, "alice", "alice-pass")
	require.NoError(t, err)
	assert.Equal(t, suite.alice.ID, session.UserID)
	assert.NotEmpty(t, session.Token)

	state, err := suite.svc.Auth.ResumeSession(suite.ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", state.User.Username)
	assert.False(t, state.Renewed)

	_, err = suite.svc.Auth.Authenticate(suite.ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = suite.svc.Auth.Authenticate(suite.ctx, "nobody", "alice-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = suite.svc.Auth.Authenticate(suite.ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func (suite *ServicesTestSuite) TestResumeSessionRenewsPastHalfLife() {
	t := suite.T()
	token := "rolling-session-token"
	require.NoError(t, suite.db.CreateSession(suite.ctx, token, suite.alice.ID, time.Now().Add(10*24*time.Hour)))

	state, err := suite.svc.Auth.ResumeSession(suite.ctx, token)
	require.NoError(t, err)
	assert.True(t, state.Renewed)
	assert.WithinDuration(t, time.Now().Add(SessionDuration), state.ExpiresAt, time.Minute)

	info, err := suite.db.ValidateSessionWithInfo(suite.ctx, token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(SessionDuration), info.ExpiresAt, time.Minute)
}

func (suite *ServicesTestSuite) TestLogoutEndsSession() {
	t := suite.T()
	session, err := suite.svc.Auth.Authenticate(suite.ctx, "alice", "alice-pass")
	require.NoError(t, err)

	require.NoError(t, suite.svc.Auth.Logout(suite.ctx, session.Token))

	_, err = suite.svc.Auth.ResumeSession(suite.ctx, session.Token)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = suite.svc.Auth.ResumeSession(suite.ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func (suite *ServicesTestSuite) TestRequestPasswordResetUnknownEmail() {
	require.NoError(suite.T(), suite.svc.Auth.RequestPasswordReset(suite.ctx, "nobody@example.com"))
	assert.Empty(suite.T(), suite.queue.messages())
}

func (suite *ServicesTestSuite) TestPasswordResetFlow() {
	t := suite.T()
	session, err := suite.svc.Auth.Authenticate(suite.ctx, "alice", "alice-pass")
	require.NoError(t, err)

	require.NoError(t, suite.svc.Auth.RequestPasswordReset(suite.ctx, "Alice@Example.com"))
	msgs := suite.queue.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"alice@example.com"}, msgs[0].To)

	const prefix = "http://localhost:8080/reset_password/"
	start := strings.Index(msgs[0].Body, prefix)
	require.GreaterOrEqual(t, start, 0)
	token := strings.Fields(msgs[0].Body[start+len(prefix):])[0]

	email, err := suite.svc.Auth.VerifyResetToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	require.NoError(t, suite.svc.Auth.ResetPassword(suite.ctx, token, "new-pass"))

	_, err = suite.svc.Auth.Authenticate(suite.ctx, "alice", "alice-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = suite.svc.Auth.Authenticate(suite.ctx, "alice", "new-pass")
	assert.NoError(t, err)

	// Only the targeted account changes.
	_, err = suite.svc.Auth.Authenticate(suite.ctx, "bob", "bob-pass")
	assert.NoError(t, err)

	_, err = suite.svc.Auth.ResumeSession(suite.ctx, session.Token)
	assert.ErrorIs(t, err, ErrNotFound, "old sessions are revoked")
}

func (suite *ServicesTestSuite) TestResetPasswordRejectsBadTokens() {
	t := suite.T()

	stale := auth.NewResetTokens(testSecret).WithClock(func() time.Time { return time.Now().Add(-61 * time.Minute) })
	expired, err := stale.Issue("alice@example.com")
	require.NoError(t, err)
	assert.ErrorIs(t, suite.svc.Auth.ResetPassword(suite.ctx, expired, "x"), ErrInvalidOrExpiredToken)

	forged, err := auth.NewResetTokens("other-secret").Issue("alice@example.com")
	require.NoError(t, err)
	assert.ErrorIs(t, suite.svc.Auth.ResetPassword(suite.ctx, forged, "x"), ErrInvalidOrExpiredToken)

	assert.ErrorIs(t, suite.svc.Auth.ResetPassword(suite.ctx, "garbage", "x"), ErrInvalidOrExpiredToken)

	valid, err := auth.NewResetTokens(testSecret).Issue("alice@example.com")
	require.NoError(t, err)
	err = suite.svc.Auth.ResetPassword(suite.ctx, valid, strings.Repeat("p", 73))
	assert.ErrorIs(t, err, ErrInvalidInput, "password over 72 bytes")

	ghost, err := auth.NewResetTokens(testSecret).Issue("ghost@example.com")
	require.NoError(t, err)
	assert.ErrorIs(t, suite.svc.Auth.ResetPassword(suite.ctx, ghost, "x"), ErrInvalidOrExpiredToken)

	_, err = suite.svc.Auth.Authenticate(suite.ctx, "alice", "alice-pass")
	assert.NoError(t, err, "password unchanged")
}

func (suite *ServicesTestSuite) TestEnsureUser() {
	created, err := suite.svc.Auth.EnsureUser(suite.ctx, "admin", "pw", "admin@example.com")
	require.NoError(suite.T(), err)
	assert.False(suite.T(), created, "users already exist")
}

// --- categories ---

func (suite *ServicesTestSuite) TestCategoryCreateAndList() {
	t := suite.T()
	suite.category(suite.alice.ID, "Food", models.Expense)
	suite.category(suite.alice.ID, "Salary", models.Income)
	suite.category(suite.bob.ID, "Food", models.Expense)

	_, err := suite.svc.Categories.Create(suite.ctx, suite.alice.ID, CategoryInput{Name: " Food ", Type: "Expense"})
	assert.ErrorIs(t, err, ErrDuplicateCategory)

	_, err = suite.svc.Categories.Create(suite.ctx, suite.alice.ID, CategoryInput{Name: "Misc", Type: "Transfer"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = suite.svc.Categories.Create(suite.ctx, suite.alice.ID, CategoryInput{Name: "", Type: "Income"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	list, err := suite.svc.Categories.List(suite.ctx, suite.alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Food", list[0].Name)
	assert.Equal(t, "Salary", list[1].Name)
}

func (suite *ServicesTestSuite) TestCategoryOwnership() {
	t := suite.T()
	food := suite.category(suite.alice.ID, "Food", models.Expense)

	_, err := suite.svc.Categories.Get(suite.ctx, suite.bob.ID, food.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = suite.svc.Categories.Update(suite.ctx, suite.bob.ID, food.ID, CategoryInput{Name: "Mine", Type: "Expense"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = suite.svc.Categories.Delete(suite.ctx, suite.bob.ID, food.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = suite.svc.Categories.Update(suite.ctx, suite.alice.ID, 9999, CategoryInput{Name: "X", Type: "Expense"})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := suite.svc.Categories.Get(suite.ctx, suite.alice.ID, food.ID)
	require.NoError(t, err)
	assert.Equal(t, "Food", got.Name)
}

func (suite *ServicesTestSuite) TestCategoryUpdate() {
	t := suite.T()
	food := suite.category(suite.alice.ID, "Food", models.Expense)
	suite.category(suite.alice.ID, "Rent", models.Expense)

	updated, err := suite.svc.Categories.Update(suite.ctx, suite.alice.ID, food.ID, CategoryInput{Name: "Groceries", Type: "Expense", Description: "weekly"})
	require.NoError(t, err)
	assert.Equal(t, "Groceries", updated.Name)
	assert.Equal(t, "weekly", updated.Description)

	_, err = suite.svc.Categories.Update(suite.ctx, suite.alice.ID, food.ID, CategoryInput{Name: "Rent", Type: "Expense"})
	assert.ErrorIs(t, err, ErrDuplicateCategory)

	// Unused categories may switch type.
	updated, err = suite.svc.Categories.Update(suite.ctx, suite.alice.ID, food.ID, CategoryInput{Name: "Groceries", Type: "Income"})
	require.NoError(t, err)
	assert.Equal(t, models.Income, updated.Type)
}

func (suite *ServicesTestSuite) TestCategoryTypeChangeBlockedByTransactions() {
	t := suite.T()
	food := suite.category(suite.alice.ID, "Food", models.Expense)
	suite.transaction(suite.alice.ID, TransactionInput{Amount: "5", Type: "Expense", CategoryID: idString(food.ID)})

	_, err := suite.svc.Categories.Update(suite.ctx, suite.alice.ID, food.ID, CategoryInput{Name: "Food", Type: "Income"})
	assert.ErrorIs(t, err, ErrCategoryTypeMismatch)

	got, err := suite.svc.Categories.Get(suite.ctx, suite.alice.ID, food.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Expense, got.Type)
}

func (suite *ServicesTestSuite) TestCategoryDelete() {
	t := suite.T()
	food := suite.category(suite.alice.ID, "Food", models.Expense)
	spare := suite.category(suite.alice.ID, "Spare", models.Expense)
	suite.transaction(suite.alice.ID, TransactionInput{Amount: "5", Type: "Expense", CategoryID: idString(food.ID)})

	inUse, err := suite.svc.Categories.Delete(suite.ctx, suite.alice.ID, food.ID)
	assert.ErrorIs(t, err, ErrCategoryInUse)
	require.NotNil(t, inUse, "the blocking category is returned")
	assert.Equal(t, "Food", inUse.Name)

	deleted, err := suite.svc.Categories.Delete(suite.ctx, suite.alice.ID, spare.ID)
	require.NoError(t, err)
	assert.Equal(t, "Spare", deleted.Name)

	_, err = suite.svc.Categories.Get(suite.ctx, suite.alice.ID, spare.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- transactions ---

func (suite *ServicesTestSuite) TestTransactionCreate() {
	t := suite.T()
	food := suite.category(suite.alice.ID, "Food", models.Expense)

	tx, err := suite.svc.Transactions.Create(suite.ctx, suite.alice.ID, TransactionInput{
		Title:       " Lunch ",
		Amount:      "12.50",
		Date:        "2024-06-09",
		PaymentMode: "Card",
		Type:        "expense",
		CategoryID:  idString(food.ID),
	})
	require.NoError(t, err)

	got, err := suite.svc.Transactions.Get(suite.ctx, suite.alice.ID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lunch", got.Title)
	assertDecimal(t, "12.5", got.Amount)
	assert.Equal(t, models.Expense, got.Type)
	assert.Equal(t, "Card", got.PaymentMode)
	assert.Equal(t, "Food", got.CategoryName)
	assert.True(t, got.Date.Equal(time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)))
}

func (suite *ServicesTestSuite) TestTransactionDefaultsDateToNow() {
	tx := suite.transaction(suite.alice.ID, TransactionInput{Amount: "1", Type: "Income"})
	assert.True(suite.T(), tx.Date.Equal(fixedNow))
}

func (suite *ServicesTestSuite) TestTransactionTypeMismatchPersistsNothing() {
	t := suite.T()
	salary := suite.category(suite.alice.ID, "Salary", models.Income)

	_, err := suite.svc.Transactions.Create(suite.ctx, suite.alice.ID, TransactionInput{
		Title: "Coffee", Amount: "3", PaymentMode: "Cash", Type: "Expense", CategoryID: idString(salary.ID),
	})
	assert.ErrorIs(t, err, ErrCategoryTypeMismatch)
	assert.Equal(t, 0, suite.count(suite.alice.ID))
}

func (suite *ServicesTestSuite) TestTransactionRejectsForeignCategory() {
	bobs := suite.category(suite.bob.ID, "Food", models.Expense)

	_, err := suite.svc.Transactions.Create(suite.ctx, suite.alice.ID, TransactionInput{
		Title: "Lunch", Amount: "3", PaymentMode: "Cash", Type: "Expense", CategoryID: idString(bobs.ID),
	})
	assert.ErrorIs(suite.T(), err, ErrNotFound)
	assert.Equal(suite.T(), 0, suite.count(suite.alice.ID))
}

func (suite *ServicesTestSuite) TestTransactionValidation() {
	t := suite.T()
	tests := []struct {
		name string
		in   TransactionInput
		want error
	}{
		{"unparseable amount", TransactionInput{Amount: "abc", Type: "Expense"}, ErrInvalidAmount},
		{"negative amount", TransactionInput{Amount: "-5", Type: "Expense"}, ErrInvalidAmount},
		{"empty amount", TransactionInput{Amount: "", Type: "Expense"}, ErrInvalidAmount},
		{"unparseable date", TransactionInput{Amount: "5", Date: "2024-13-45", Type: "Expense"}, ErrInvalidDate},
		{"two days ahead", TransactionInput{Amount: "5", Date: "2024-06-12", Type: "Expense"}, ErrInvalidDate},
		{"unknown type", TransactionInput{Amount: "5", Type: "Transfer"}, ErrInvalidInput},
		{"bad category id", TransactionInput{Amount: "5", Type: "Expense", CategoryID: "x"}, ErrNotFound},
	}
	for _, tt := range tests {
		tt.in.Title, tt.in.PaymentMode = "item", "Cash"
		_, err := suite.svc.Transactions.Create(suite.ctx, suite.alice.ID, tt.in)
		assert.ErrorIs(t, err, tt.want, tt.name)
	}

	_, err := suite.svc.Transactions.Create(suite.ctx, suite.alice.ID, TransactionInput{Amount: "5", Type: "Expense", PaymentMode: "Cash"})
	assert.ErrorIs(t, err, ErrInvalidInput, "missing title")

	_, err = suite.svc.Transactions.Create(suite.ctx, suite.alice.ID, TransactionInput{
		Title: "item", Amount: "5", Type: "Expense", PaymentMode: strings.Repeat("m", 26),
	})
	assert.ErrorIs(t, err, ErrInvalidInput, "payment mode over 25 characters")

	_, err = suite.svc.Transactions.Create(suite.ctx, suite.alice.ID, TransactionInput{
		Title: "item", Amount: "1e400", Type: "Expense", PaymentMode: "Cash",
	})
	assert.ErrorIs(t, err, ErrInvalidAmount, "exponent notation")

	assert.Equal(t, 0, suite.count(suite.alice.ID))

	_, err = suite.svc.Transactions.Create(suite.ctx, suite.alice.ID, TransactionInput{
		Title: "item", Amount: "999999999999.99", Type: "Expense", PaymentMode: strings.Repeat("m", 25),
	})
	assert.NoError(t, err, "payment mode and amount at their limits")
}

func (suite *ServicesTestSuite) TestDateGraceDiffersBetweenCreateAndEdit() {
	t := suite.T()

	tomorrow := suite.transaction(suite.alice.ID, TransactionInput{Amount: "5", Date: "2024-06-11", Type: "Expense"})
	suite.transaction(suite.alice.ID, TransactionInput{Amount: "5", Date: "2024-06-11T23:30", Type: "Expense"})

	in := TransactionInput{Title: "item", Amount: "5", Date: "2024-06-11", PaymentMode: "Cash", Type: "Expense"}
	_, err := suite.svc.Transactions.Update(suite.ctx, suite.alice.ID, tomorrow.ID, in)
	assert.ErrorIs(t, err, ErrInvalidDate)

	in.Date = "2024-06-10"
	_, err = suite.svc.Transactions.Update(suite.ctx, suite.alice.ID, tomorrow.ID, in)
	assert.NoError(t, err)
}

func (suite *ServicesTestSuite) TestTransactionUpdate() {
	t := suite.T()
	food := suite.category(suite.alice.ID, "Food", models.Expense)
	salary := suite.category(suite.alice.ID, "Salary", models.Income)
	tx := suite.transaction(suite.alice.ID, TransactionInput{Amount: "5", Date: "2024-06-01", Type: "Expense", CategoryID: idString(food.ID)})

	updated, err := suite.svc.Transactions.Update(suite.ctx, suite.alice.ID, tx.ID, TransactionInput{
		Title: "Bonus", Amount: "100", Date: "2024-06-02T09:15", PaymentMode: "Bank", Type: "Income", CategoryID: idString(salary.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, tx.ID, updated.ID)

	got, err := suite.svc.Transactions.Get(suite.ctx, suite.alice.ID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bonus", got.Title)
	assert.Equal(t, models.Income, got.Type)
	assert.Equal(t, "Salary", got.CategoryName)
	assert.True(t, got.Date.Equal(time.Date(2024, 6, 2, 9, 15, 0, 0, time.UTC)))

	_, err = suite.svc.Transactions.Update(suite.ctx, suite.alice.ID, tx.ID, TransactionInput{
		Title: "Bonus", Amount: "100", Date: "2024-06-02", PaymentMode: "Bank", Type: "Expense", CategoryID: idString(salary.ID),
	})
	assert.ErrorIs(t, err, ErrCategoryTypeMismatch)
}

func (suite *ServicesTestSuite) TestTransactionOwnership() {
	t := suite.T()
	tx := suite.transaction(suite.alice.ID, TransactionInput{Amount: "5", Type: "Expense"})
	in := TransactionInput{Title: "stolen", Amount: "1", PaymentMode: "Cash", Type: "Expense"}

	_, err := suite.svc.Transactions.Get(suite.ctx, suite.bob.ID, tx.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = suite.svc.Transactions.Update(suite.ctx, suite.bob.ID, tx.ID, in)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, suite.svc.Transactions.Delete(suite.ctx, suite.bob.ID, tx.ID), ErrForbidden)

	_, err = suite.svc.Transactions.Get(suite.ctx, suite.bob.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, suite.svc.Transactions.Delete(suite.ctx, suite.alice.ID, 9999), ErrNotFound)

	got, err := suite.svc.Transactions.Get(suite.ctx, suite.alice.ID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "item", got.Title)

	require.NoError(t, suite.svc.Transactions.Delete(suite.ctx, suite.alice.ID, tx.ID))
	assert.Equal(t, 0, suite.count(suite.alice.ID))
}

func (suite *ServicesTestSuite) TestPagination() {
	t := suite.T()
	for i := 1; i <= 10; i++ {
		suite.transaction(suite.alice.ID, TransactionInput{
			Title:  "t" + idString(int64(i)),
			Amount: "1",
			Date:   time.Date(2024, 5, i, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			Type:   "Expense",
		})
	}
	suite.transaction(suite.bob.ID, TransactionInput{Amount: "1", Type: "Expense"})

	p1, err := suite.svc.Transactions.ListPage(suite.ctx, suite.alice.ID, 1)
	require.NoError(t, err)
	require.Len(t, p1.Items, 7)
	assert.Equal(t, "t10", p1.Items[0].Title)
	assert.Equal(t, "t4", p1.Items[6].Title)
	assert.Equal(t, 10, p1.Total)
	assert.Equal(t, 2, p1.Pages)
	assert.False(t, p1.HasPrev)
	assert.True(t, p1.HasNext)
	assert.Equal(t, 2, p1.NextNum)

	p2, err := suite.svc.Transactions.ListPage(suite.ctx, suite.alice.ID, 2)
	require.NoError(t, err)
	require.Len(t, p2.Items, 3)
	assert.Equal(t, "t3", p2.Items[0].Title)
	assert.True(t, p2.HasPrev)
	assert.Equal(t, 1, p2.PrevNum)
	assert.False(t, p2.HasNext)

	p3, err := suite.svc.Transactions.ListPage(suite.ctx, suite.alice.ID, 3)
	require.NoError(t, err)
	assert.Empty(t, p3.Items)

	p0, err := suite.svc.Transactions.ListPage(suite.ctx, suite.alice.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, p0.Page)
	assert.Len(t, p0.Items, 7)
}

func (suite *ServicesTestSuite) TestPaginationEmpty() {
	p, err := suite.svc.Dashboard.Page(suite.ctx, suite.alice.ID, 1)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), p.Items)
	assert.Equal(suite.T(), 0, p.Pages)
	assert.False(suite.T(), p.HasNext)
}

// --- dashboard ---

func (suite *ServicesTestSuite) TestSummary() {
	t := suite.T()
	salary := suite.category(suite.alice.ID, "Salary", models.Income)
	food := suite.category(suite.alice.ID, "Food", models.Expense)

	suite.transaction(suite.alice.ID, TransactionInput{Amount: "100", Date: "2024-01-01", Type: "Income", CategoryID: idString(salary.ID)})
	suite.transaction(suite.alice.ID, TransactionInput{Amount: "40", Date: "2024-01-01", Type: "Expense", CategoryID: idString(food.ID)})
	suite.transaction(suite.alice.ID, TransactionInput{Amount: "10", Date: "2024-01-02", Type: "Expense"})
	suite.transaction(suite.bob.ID, TransactionInput{Amount: "999", Date: "2024-01-01", Type: "Income"})

	s, err := suite.svc.Dashboard.Summary(suite.ctx, suite.alice.ID)
	require.NoError(t, err)

	assertDecimal(t, "100", s.TotalIncome)
	assertDecimal(t, "50", s.TotalExpense)
	assertDecimal(t, "50", s.Balance)

	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, s.Daily.Dates)
	require.Len(t, s.Daily.Expense, 2)
	assertDecimal(t, "40", s.Daily.Expense[0])
	assertDecimal(t, "10", s.Daily.Expense[1])
	assertDecimal(t, "100", s.Daily.Income[0])
	assertDecimal(t, "0", s.Daily.Income[1])

	require.Len(t, s.ExpenseByCategory, 2)
	assert.Equal(t, "Food", s.ExpenseByCategory[0].Name)
	assert.Equal(t, Uncategorized, s.ExpenseByCategory[1].Name)
	require.Len(t, s.IncomeByCategory, 1)
	assert.Equal(t, "Salary", s.IncomeByCategory[0].Name)
}

func (suite *ServicesTestSuite) TestHasCategories() {
	has, err := suite.svc.Dashboard.HasCategories(suite.ctx, suite.alice.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), has)

	suite.category(suite.alice.ID, "Food", models.Expense)
	has, err = suite.svc.Dashboard.HasCategories(suite.ctx, suite.alice.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), has)
}

func (suite *ServicesTestSuite) TestMonth() {
	t := suite.T()
	food := suite.category(suite.alice.ID, "Food", models.Expense)
	rent := suite.category(suite.alice.ID, "Rent", models.Expense)

	suite.transaction(suite.alice.ID, TransactionInput{Amount: "25", Date: "2024-05-03", Type: "Expense", CategoryID: idString(food.ID)})
	suite.transaction(suite.alice.ID, TransactionInput{Amount: "75", Date: "2024-05-01", Type: "Expense", CategoryID: idString(rent.ID)})
	suite.transaction(suite.alice.ID, TransactionInput{Amount: "500", Date: "2024-05-02", Type: "Income"})
	suite.transaction(suite.alice.ID, TransactionInput{Amount: "30", Date: "2024-04-30", Type: "Expense", CategoryID: idString(food.ID)})

	ms, err := suite.svc.Dashboard.Month(suite.ctx, suite.alice.ID, 2024, time.May)
	require.NoError(t, err)
	assertDecimal(t, "100", ms.Total)
	assertDecimal(t, "500", ms.Income)
	require.Len(t, ms.Categories, 2)
	assert.Equal(t, "Rent", ms.Categories[0].Name)
	assert.InDelta(t, 75.0, ms.Categories[0].Percentage, 0.001)
	assert.Equal(t, 1, ms.Categories[1].Count)
	require.Len(t, ms.Transactions, 3)
	assert.True(t, ms.Transactions[0].Date.Equal(time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)))

	current, err := suite.svc.Dashboard.Month(suite.ctx, suite.alice.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2024, current.Year)
	assert.Equal(t, time.June, current.Month)
	assert.Empty(t, current.Categories)
}

func TestServicesTestSuite(t *testing.T) {
	suite.Run(t, new(ServicesTestSuite))
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, time.UTC)
	assert.True(t, s.Balance.IsZero())
	assert.Empty(t, s.Daily.Dates)
	assert.Empty(t, s.ExpenseByCategory)
}

func TestSummarizeGroupsByLocalDay(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	txs := []models.Transaction{
		{Type: models.Expense, Amount: decimal.NewFromInt(1), Date: time.Date(2024, 1, 1, 21, 0, 0, 0, time.UTC)},
		{Type: models.Expense, Amount: decimal.NewFromInt(2), Date: time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)},
	}
	s := Summarize(txs, loc)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, s.Daily.Dates)
}

func TestParseAmount(t *testing.T) {
	a, err := ParseAmount(" 10.456 ")
	require.NoError(t, err)
	assertDecimal(t, "10.46", a)

	a, err = ParseAmount("0")
	require.NoError(t, err)
	assert.True(t, a.IsZero())

	a, err = ParseAmount("999999999999.99")
	require.NoError(t, err)
	assertDecimal(t, "999999999999.99", a)

	a, err = ParseAmount(".5")
	require.NoError(t, err)
	assertDecimal(t, "0.5", a)

	for _, bad := range []string{
		"", "ten", "-0.01", "1e", ".", "1.2.3", "+5",
		"1e400", "1e500000", "1E3", "2.5e-1",
		"1000000000000", "999999999999.999",
	} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestStorageErrWrapsUnknownErrors(t *testing.T) {
	assert.NoError(t, storageErr(nil))
	assert.Equal(t, ErrNotFound, storageErr(ErrNotFound))

	err := storageErr(assert.AnError)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, assert.AnError)
}
