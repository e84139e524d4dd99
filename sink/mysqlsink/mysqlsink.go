// Package mysqlsink is a reference opportunity.Sink backed by GORM
// and MySQL, grounded on the teacher's transaction-recorder pattern:
// amounts are stored as float64 columns, and the schema is
// auto-migrated on construction.
package mysqlsink

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arbitragedex/arbitragedex/opportunity"
)

// Record is the database model for one accepted opportunity.
type Record struct {
	ID               uint      `gorm:"primaryKey;autoIncrement"`
	OpportunityID    string    `gorm:"column:opportunity_id;uniqueIndex;not null"`
	PairKey          string    `gorm:"column:pair_key;index;not null"`
	BuyPoolAddress   string    `gorm:"column:buy_pool_address;not null"`
	SellPoolAddress  string    `gorm:"column:sell_pool_address;not null"`
	InputAmount      float64   `gorm:"column:input_amount;not null"`
	GrossProfit      float64   `gorm:"column:gross_profit;not null"`
	NetProfit        float64   `gorm:"column:net_profit;not null"`
	NetProfitPercent float64   `gorm:"column:net_profit_percent;not null"`
	TotalCost        float64   `gorm:"column:total_cost;not null"`
	BlockNumber      uint64    `gorm:"column:block_number;not null"`
	TimestampMs      int64     `gorm:"column:timestamp_ms;not null;index"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (Record) TableName() string {
	return "arbitrage_opportunities"
}

// Sink implements opportunity.Sink over a GORM/MySQL connection.
type Sink struct {
	db *gorm.DB
}

// New opens a MySQL connection via dsn ("user:pass@tcp(host:port)/db?parseTime=True")
// and auto-migrates the opportunities table.
func New(dsn string) (*Sink, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("mysqlsink: connect: %w", err)
	}
	return NewWithDB(db)
}

// NewWithDB wraps an already-constructed *gorm.DB, e.g. one backed by
// go-sqlmock in tests.
func NewWithDB(db *gorm.DB) (*Sink, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("mysqlsink: migrate schema: %w", err)
	}
	return &Sink{db: db}, nil
}

// Record implements opportunity.Sink.
func (s *Sink) Record(o opportunity.Opportunity) error {
	record := Record{
		OpportunityID:    o.ID,
		PairKey:          o.Delta.PairKey,
		BuyPoolAddress:   o.Delta.BuyPool.Pool.Key(),
		SellPoolAddress:  o.Delta.SellPool.Pool.Key(),
		InputAmount:      o.InputAmount,
		GrossProfit:      o.GrossProfit,
		NetProfit:        o.NetProfit,
		NetProfitPercent: o.NetProfitPercent,
		TotalCost:        o.Costs.TotalCost,
		BlockNumber:      o.BlockNumber,
		TimestampMs:      o.TimestampMs,
	}

	result := s.db.Create(&record)
	if result.Error != nil {
		return fmt.Errorf("mysqlsink: insert opportunity: %w", result.Error)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Sink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("mysqlsink: get underlying db: %w", err)
	}
	return sqlDB.Close()
}
