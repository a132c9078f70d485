// Package db persists a write-only audit trail of executed opportunities:
// one row per attempted Opportunity, plus a running totalRedeemedUsdc
// high-water mark. The core never reads this back to reconstruct decision
// state — it is an audit log, not a source of restart-time state.
package db

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lbf-network/rebalancer/pkg/types"
)

// OpportunityRecord is one attempted opportunity, win or lose.
type OpportunityRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp  time.Time `gorm:"index;not null"`
	Kind       string    `gorm:"type:varchar(32);not null"`
	FromNet    string    `gorm:"type:varchar(64)"`
	ToNet      string    `gorm:"type:varchar(64)"`
	Amount     string    `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	Score      float64   `gorm:"not null"`
	Feasible   bool      `gorm:"not null"`
	Executed   bool      `gorm:"not null"`
	TxHash     string    `gorm:"type:varchar(66)"`
	Error      string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (OpportunityRecord) TableName() string { return "opportunity_executions" }

// RedeemedHighWaterMark is a totalRedeemedUsdc reading taken after every
// successful TakeSurplus.
type RedeemedHighWaterMark struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index;not null"`
	Total     string    `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (RedeemedHighWaterMark) TableName() string { return "redeemed_high_water_marks" }

// MySQLExecutionRecorder implements rebalance.Recorder using GORM and MySQL.
type MySQLExecutionRecorder struct {
	db *gorm.DB
}

// NewMySQLExecutionRecorder opens dsn and migrates the audit-log schema.
// dsn format: "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func NewMySQLExecutionRecorder(dsn string) (*MySQLExecutionRecorder, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	if err := db.AutoMigrate(&OpportunityRecord{}, &RedeemedHighWaterMark{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &MySQLExecutionRecorder{db: db}, nil
}

// RecordAttempt writes one row per attempted opportunity. A recording
// failure is logged here and not returned, so a write error never stops the
// executor's opportunity loop.
func (r *MySQLExecutionRecorder) RecordAttempt(ctx context.Context, so types.ScoredOpportunity, txHash common.Hash, execErr error) {
	record := OpportunityRecord{
		Timestamp: time.Now(),
		Kind:      so.Opp.Kind.String(),
		FromNet:   so.Opp.From,
		ToNet:     firstNonEmpty(so.Opp.To, so.Opp.On),
		Amount:    bigIntToString(so.Opp.Amount),
		Score:     so.Score,
		Feasible:  so.Feasible,
		Executed:  execErr == nil,
		TxHash:    txHash.Hex(),
	}
	if execErr != nil {
		record.Error = execErr.Error()
	}

	if result := r.db.WithContext(ctx).Create(&record); result.Error != nil {
		fmt.Printf("ERROR: record opportunity attempt: %v\n", result.Error)
	}
}

// RecordRedeemed writes a new high-water-mark row after each successful
// TakeSurplus.
func (r *MySQLExecutionRecorder) RecordRedeemed(ctx context.Context, total *big.Int) {
	mark := RedeemedHighWaterMark{Timestamp: time.Now(), Total: bigIntToString(total)}
	if result := r.db.WithContext(ctx).Create(&mark); result.Error != nil {
		fmt.Printf("ERROR: record redeemed high-water mark: %v\n", result.Error)
	}
}

// GetDB returns the underlying GORM DB instance for advanced queries.
func (r *MySQLExecutionRecorder) GetDB() *gorm.DB { return r.db }

// Close closes the database connection.
func (r *MySQLExecutionRecorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}
	return sqlDB.Close()
}

func bigIntToString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
