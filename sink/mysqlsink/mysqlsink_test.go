package mysqlsink

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/arbitragedex/arbitragedex/cost"
	"github.com/arbitragedex/arbitragedex/delta"
	"github.com/arbitragedex/arbitragedex/opportunity"
	"github.com/arbitragedex/arbitragedex/pool"
	"github.com/arbitragedex/arbitragedex/snapshot"
)

func TestSinkRecordInsertsRow(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer sqlDB.Close()

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to create gorm DB: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `arbitrage_opportunities`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	sink := &Sink{db: gormDB}

	o := opportunity.Opportunity{
		ID:               "opp-1",
		InputAmount:      10,
		GrossProfit:      1.0,
		NetProfit:        0.89,
		NetProfitPercent: 8.9,
		Costs:            cost.Estimate{TotalCost: 0.11},
		BlockNumber:      100,
		TimestampMs:      1000,
		Delta: delta.Delta{
			PairKey:  "0x01/0x02",
			BuyPool:  snapshot.Price{Pool: pool.Config{Label: "buy"}},
			SellPool: snapshot.Price{Pool: pool.Config{Label: "sell"}},
		},
	}

	if err := sink.Record(o); err != nil {
		t.Errorf("Record failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRecordTableName(t *testing.T) {
	r := Record{}
	if got := r.TableName(); got != "arbitrage_opportunities" {
		t.Errorf("TableName() = %v, want arbitrage_opportunities", got)
	}
}
