//go:build smoke

// Package notefold_test provides smoke testing for the notefold application.
//
// These smoke tests are designed to discover correctness bugs, not performance
// issues. All tests ALWAYS verify that created data is accessible and
// consistent. For performance testing, create separate benchmark tests using
// Go's testing.B.
//
// Test Modes:
//
//  1. Standard Test (default):
//     Each virtual user creates their own folders and notes independently.
//     Use for: Testing normal application usage patterns and data integrity.
//
//  2. Multi-Device Test (SMOKE_MULTI_DEVICE=true):
//     Several clients share ONE account and write concurrently, simulating a
//     user signed in on multiple devices. Use for: Testing concurrent access
//     correctness and data consistency under contention.
//
//  3. Scaling Test (SMOKE_ENABLE_SCALING=true):
//     Progressively increases load through defined stages (10->25->50->100
//     users). Use for: Verifying correctness remains intact as user count
//     increases.
//
// Examples:
//
//	go test -tags=smoke -count=1 -run TestE2ESmoke .
//	SMOKE_MULTI_DEVICE=true go test -tags=smoke -run TestE2ESmoke .
//	SMOKE_ENABLE_SCALING=true go test -tags=smoke -run TestE2ESmoke .
package notefold_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/notefold/notefold/pkg/client"
	"github.com/notefold/notefold/pkg/notefoldtesting"
)

// SmokeTestConfig holds configuration for smoke tests
type SmokeTestConfig struct {
	BaseURL      string
	NumUsers     int           // Number of concurrent virtual users
	TestDuration time.Duration // How long multi-device mode runs
	Timeout      time.Duration // Overall test timeout
	LaunchDelay  time.Duration // Delay between launching users

	EnableScaling bool          // Whether to progressively scale users
	ScalingStages []int         // User counts for each scaling stage
	StageCooldown time.Duration // Cooldown between scaling stages

	MultiDevice         bool    // Whether clients share a single account
	RequiredSuccessRate float64 // Minimum success rate (0-100)
}

// DefaultConfig returns a default smoke test configuration
func DefaultConfig() *SmokeTestConfig {
	return &SmokeTestConfig{
		BaseURL:             getEnvOrDefault("NOTEFOLD_URL", "http://localhost:8080"),
		NumUsers:            getEnvOrDefaultInt("SMOKE_NUM_USERS", 10),
		TestDuration:        getEnvOrDefaultDuration("SMOKE_DURATION", 10*time.Second),
		Timeout:             getEnvOrDefaultDuration("SMOKE_TIMEOUT", 5*time.Minute),
		LaunchDelay:         getEnvOrDefaultDuration("SMOKE_LAUNCH_DELAY", 10*time.Millisecond),
		EnableScaling:       getEnvOrDefaultBool("SMOKE_ENABLE_SCALING", false),
		ScalingStages:       []int{10, 25, 50, 100},
		StageCooldown:       5 * time.Second,
		MultiDevice:         getEnvOrDefaultBool("SMOKE_MULTI_DEVICE", false),
		RequiredSuccessRate: getEnvOrDefaultFloat("SMOKE_SUCCESS_RATE", 95.0),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// TestE2ESmoke is the main parameterized smoke test.
// Run with: go test -tags=smoke -count=1 ./... -run TestE2ESmoke
func TestE2ESmoke(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping smoke test in short mode")
	}

	config := DefaultConfig()
	runSmokeTest(t, config)
}

func runSmokeTest(t *testing.T, config *SmokeTestConfig) {
	require.Greater(t, config.NumUsers, 0, "NumUsers must be positive")
	require.GreaterOrEqual(t, config.RequiredSuccessRate, 0.0, "RequiredSuccessRate must be >= 0")
	require.LessOrEqual(t, config.RequiredSuccessRate, 100.0, "RequiredSuccessRate must be <= 100")

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	// Check server health first
	healthClient := client.NewClient(config.BaseURL)
	health, err := healthClient.Health(ctx)
	require.NoError(t, err, "Server health check failed")
	require.Equal(t, "healthy", health["status"], "Server is not healthy")

	t.Logf("=== Smoke Test Configuration ===")
	t.Logf("Base URL: %s", config.BaseURL)
	t.Logf("Number of users: %d", config.NumUsers)
	t.Logf("Test duration: %v", config.TestDuration)
	t.Logf("Timeout: %v", config.Timeout)
	t.Logf("Required success rate: %.2f%%", config.RequiredSuccessRate)
	t.Logf("Scaling enabled: %v", config.EnableScaling)
	t.Logf("Multi-device: %v", config.MultiDevice)

	if config.EnableScaling {
		runScalingTest(t, ctx, config)
	} else if config.MultiDevice {
		runMultiDeviceTest(t, ctx, config)
	} else {
		runStandardTest(t, ctx, config)
	}
}

// runStandardTest runs each virtual user through a full independent scenario
func runStandardTest(t *testing.T, ctx context.Context, config *SmokeTestConfig) {
	t.Logf("Starting standard smoke test with %d users", config.NumUsers)

	var successCount, errorCount int64
	var mu sync.Mutex

	virtualUsers := make([]*notefoldtesting.VirtualUser, config.NumUsers)
	for i := 0; i < config.NumUsers; i++ {
		virtualUsers[i] = notefoldtesting.NewVirtualUser(i, config.BaseURL)
	}

	errChan := make(chan error, config.NumUsers)

	var wg sync.WaitGroup
	startTime := time.Now()

	for i := 0; i < config.NumUsers; i++ {
		wg.Add(1)
		go func(user *notefoldtesting.VirtualUser) {
			defer wg.Done()

			err := user.RunScenario(ctx)

			mu.Lock()
			if err != nil {
				errorCount++
				errChan <- fmt.Errorf("user %d failed: %w", user.Index, err)
			} else {
				successCount++
			}
			mu.Unlock()
		}(virtualUsers[i])

		if config.LaunchDelay > 0 {
			time.Sleep(config.LaunchDelay)
		}
	}

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		duration := time.Since(startTime)
		t.Logf("All %d virtual users completed in %v", config.NumUsers, duration)
	case <-ctx.Done():
		t.Fatalf("Test timed out after %v", config.Timeout)
	}

	close(errChan)
	var errors []error
	for err := range errChan {
		errors = append(errors, err)
	}

	totalOps := successCount + errorCount
	successRate := float64(successCount) / float64(totalOps) * 100

	duration := time.Since(startTime)
	t.Logf("=== Test Results ===")
	t.Logf("Duration: %v", duration)
	t.Logf("Total scenarios: %d", totalOps)
	t.Logf("Successful: %d", successCount)
	t.Logf("Failed: %d", errorCount)
	t.Logf("Success rate: %.2f%%", successRate)

	if len(errors) > 0 {
		maxErrors := 10
		if len(errors) < maxErrors {
			maxErrors = len(errors)
		}
		t.Logf("Sample errors (showing %d of %d):", maxErrors, len(errors))
		for i := 0; i < maxErrors; i++ {
			t.Logf("  Error %d: %v", i+1, errors[i])
		}
	}

	require.GreaterOrEqual(t, successRate, config.RequiredSuccessRate,
		"Success rate %.2f%% below required %.2f%%", successRate, config.RequiredSuccessRate)

	// ALWAYS verify data correctness - this is the primary purpose of smoke tests
	t.Log("Performing data verification...")
	verifyUsers := 10
	if config.NumUsers < verifyUsers {
		verifyUsers = config.NumUsers
	}
	for i := 0; i < verifyUsers; i++ {
		user := virtualUsers[i*config.NumUsers/verifyUsers]
		if err := user.VerifyAllData(ctx); err != nil {
			t.Errorf("Verification failed for user %d: %v", user.Index, err)
		}
	}

	t.Log("Smoke test completed successfully!")
}

// runScalingTest runs the standard test at progressively larger user counts
func runScalingTest(t *testing.T, ctx context.Context, config *SmokeTestConfig) {
	t.Log("Starting scaling test with progressive load levels")

	for stageNum, numUsers := range config.ScalingStages {
		t.Run(fmt.Sprintf("Stage_%d_%d_users", stageNum+1, numUsers), func(t *testing.T) {
			stageConfig := *config
			stageConfig.NumUsers = numUsers
			stageConfig.EnableScaling = false // Prevent recursion

			runStandardTest(t, ctx, &stageConfig)

			if stageNum < len(config.ScalingStages)-1 {
				t.Logf("Cooling down for %v before next stage...", config.StageCooldown)
				time.Sleep(config.StageCooldown)
			}
		})
	}
}

// runMultiDeviceTest simulates one account signed in on several devices at
// once. Every client writes notes into the same folder concurrently, testing
// for race conditions, concurrent write handling, and consistency under
// contention.
func runMultiDeviceTest(t *testing.T, ctx context.Context, config *SmokeTestConfig) {
	t.Log("Starting multi-device test - one account, many concurrent clients")

	owner := notefoldtesting.NewVirtualUser(0, config.BaseURL)
	err := owner.SignUp(ctx)
	require.NoError(t, err, "Owner signup failed")

	folder, err := owner.CreateFolder(ctx, "Shared Folder")
	require.NoError(t, err, "Failed to create shared folder")

	t.Logf("Created shared folder %s", folder.ID)

	var operationCount int64
	var errorCount int64
	var mu sync.Mutex

	var wg sync.WaitGroup
	startTime := time.Now()
	deadline := startTime.Add(config.TestDuration)

	for i := 1; i <= config.NumUsers; i++ {
		wg.Add(1)
		go func(deviceID int) {
			defer wg.Done()

			// Each "device" is a separate client signed into the owner's
			// account.
			device := client.NewClient(config.BaseURL)
			authResp, err := device.SignIn(ctx, owner.Email, owner.Password)
			if err != nil {
				mu.Lock()
				errorCount++
				mu.Unlock()
				t.Logf("Device %d signin failed: %v", deviceID, err)
				return
			}
			device.SetAuthToken(authResp.Token)

			for time.Now().Before(deadline) {
				select {
				case <-ctx.Done():
					return
				default:
					_, err := notefoldtesting.CreateNoteInFolder(ctx, device,
						fmt.Sprintf("Note from device %d at %s", deviceID, time.Now().Format("15:04:05.000")),
						folder.ID)

					mu.Lock()
					if err != nil {
						errorCount++
					} else {
						operationCount++
					}
					mu.Unlock()

					time.Sleep(100 * time.Millisecond)
				}
			}
		}(i)

		if config.LaunchDelay > 0 {
			time.Sleep(config.LaunchDelay)
		}
	}

	wg.Wait()

	duration := time.Since(startTime)
	totalOps := operationCount + errorCount
	successRate := float64(operationCount) / float64(totalOps) * 100

	t.Logf("=== Multi-Device Test Results ===")
	t.Logf("Duration: %v", duration)
	t.Logf("Total operations: %d", operationCount)
	t.Logf("Errors: %d", errorCount)
	t.Logf("Success rate: %.2f%%", successRate)
	t.Logf("Operations per second: %.2f", float64(operationCount)/duration.Seconds())

	// Every successful create must be visible in the folder listing.
	folderID := folder.ID
	notes, err := owner.Client.ListNotes(ctx, &folderID)
	require.NoError(t, err, "Failed to list notes")
	t.Logf("Final note count in shared folder: %d", len(notes))
	require.GreaterOrEqual(t, int64(len(notes)), operationCount,
		"Listed notes fewer than successful creates")

	require.GreaterOrEqual(t, successRate, config.RequiredSuccessRate,
		"Success rate %.2f%% below required %.2f%%", successRate, config.RequiredSuccessRate)
}
