package mocks

import (
	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/mock"
)

// MockSessions implements the tasks.Sessions interface for testing.
type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) NewContext() (playwright.BrowserContext, error) {
	args := m.Called()
	ctx, _ := args.Get(0).(playwright.BrowserContext)
	return ctx, args.Error(1)
}

func (m *MockSessions) NewPage(ctx playwright.BrowserContext) (playwright.Page, error) {
	args := m.Called(ctx)
	page, _ := args.Get(0).(playwright.Page)
	return page, args.Error(1)
}

func (m *MockSessions) SaveState(ctx playwright.BrowserContext) {
	m.Called(ctx)
}
