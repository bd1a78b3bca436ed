package main

import (
	"bytes"
	"context"

	"github.com/go-ble/ble"
	"github.com/spf13/cobra"
	goble "github.com/srg/blemap/internal/device/go-ble"
	"github.com/srg/blemap/internal/testutils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// Test device addresses for consistent mock device identification
const (
	TestTargetName     = "Christmas display"
	TestDeviceAddress1 = "aa:bb:cc:dd:ee:01"
	TestDeviceAddress2 = "aa:bb:cc:dd:ee:02"
)

// MockRadio is a testify mock of goble.Radio.
type MockRadio struct {
	mock.Mock
}

func (m *MockRadio) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	return m.Called(ctx, allowDup, h).Error(0)
}

func (m *MockRadio) Dial(ctx context.Context, address string) (goble.Client, error) {
	args := m.Called(ctx, address)
	c, _ := args.Get(0).(goble.Client)
	return c, args.Error(1)
}

// CommandTestSuite swaps the go-ble radio for a mock and resets command
// flags between tests.
type CommandTestSuite struct {
	suite.Suite

	Helper        *testutils.TestHelper
	Radio         *MockRadio
	originalRadio func() (goble.Radio, error)
}

func (s *CommandTestSuite) SetupTest() {
	s.Helper = testutils.NewTestHelper(s.T())
	s.Radio = &MockRadio{}
	s.originalRadio = goble.RadioFactory
	goble.RadioFactory = func() (goble.Radio, error) { return s.Radio, nil }

	runOpts = runFlags{}
	matchName = ""
	_ = rootCmd.PersistentFlags().Set("config", "")
	_ = rootCmd.PersistentFlags().Set("log-level", "")
}

func (s *CommandTestSuite) TearDownTest() {
	goble.RadioFactory = s.originalRadio
}

// ExpectScan makes the radio report advs once per scan and then wait until
// the scan is cancelled.
func (s *CommandTestSuite) ExpectScan(advs ...ble.Advertisement) {
	s.Radio.On("Scan", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		h := args.Get(2).(ble.AdvHandler)
		for _, a := range advs {
			h(a)
		}
		<-ctx.Done()
	}).Return(nil)
}

// ExecuteCommand runs a cobra command with args, returns stdout and error.
func (s *CommandTestSuite) ExecuteCommand(cmd *cobra.Command, args ...string) (string, error) {
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
