package main

import (
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/config"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/constants"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/logger"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	db, err := models.InitDB(&cfg.Database)
	if err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(db); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 三级推广链: root -> mid -> leaf
	type seedAffiliate struct {
		code         string
		email        string
		displayName  string
		referrerCode string
		threshold    string
		payoutEmail  string
	}
	chain := []seedAffiliate{
		{code: "ROOT01", email: "root@example.com", displayName: "Root Affiliate", threshold: "0", payoutEmail: "root-payout@example.com"},
		{code: "MID001", email: "mid@example.com", displayName: "Mid Affiliate", referrerCode: "ROOT01", threshold: "25", payoutEmail: "mid-payout@example.com"},
		{code: "LEAF01", email: "leaf@example.com", displayName: "Leaf Affiliate", referrerCode: "MID001", threshold: "50", payoutEmail: ""},
	}

	codeToID := map[string]uint{}
	for _, seed := range chain {
		var existing models.Affiliate
		if err := db.Where("code = ?", seed.code).First(&existing).Error; err == nil {
			stdLog.Printf("Affiliate already exists: %s", seed.code)
			codeToID[seed.code] = existing.ID
			continue
		}

		threshold, err := decimal.NewFromString(seed.threshold)
		if err != nil {
			threshold = decimal.Zero
		}
		affiliate := models.Affiliate{
			Code:            seed.code,
			Email:           seed.email,
			DisplayName:     seed.displayName,
			Status:          constants.AffiliateStatusActive,
			PayoutThreshold: models.NewMoneyFromDecimal(threshold),
			PayoutEmail:     seed.payoutEmail,
		}
		if seed.referrerCode != "" {
			referrerID, ok := codeToID[seed.referrerCode]
			if !ok {
				stdLog.Printf("Referrer not found for %s: %s", seed.code, seed.referrerCode)
				continue
			}
			affiliate.ReferrerID = &referrerID
		}
		if err := db.Create(&affiliate).Error; err != nil {
			stdLog.Printf("Failed to create affiliate %s: %v", seed.code, err)
			continue
		}
		stdLog.Printf("Created affiliate: %s", seed.code)
		codeToID[seed.code] = affiliate.ID
	}

	// 客户终身绑定示例
	customer := models.AffiliateCustomer{
		CustomerKey: "customer-demo-001",
		AffiliateID: codeToID["LEAF01"],
	}
	if customer.AffiliateID != 0 {
		var existing models.AffiliateCustomer
		if err := db.Where("customer_key = ?", customer.CustomerKey).First(&existing).Error; err != nil {
			if err := db.Create(&customer).Error; err != nil {
				stdLog.Printf("Failed to create customer binding: %v", err)
			} else {
				stdLog.Printf("Created customer binding: %s -> LEAF01", customer.CustomerKey)
			}
		} else {
			stdLog.Printf("Customer binding already exists: %s", customer.CustomerKey)
		}
	}

	// 历史日统计示例, 便于本地验证奖池结算
	statDate := time.Now().UTC().AddDate(0, 0, -1).Format(constants.StatDateLayout)
	for code, profit := range map[string]string{"ROOT01": "320", "MID001": "180", "LEAF01": "95"} {
		affiliateID, ok := codeToID[code]
		if !ok {
			continue
		}
		var existing models.KingMidasDailyStat
		if err := db.Where("stat_date = ? AND affiliate_id = ?", statDate, affiliateID).First(&existing).Error; err == nil {
			stdLog.Printf("Daily stat already exists: %s %s", statDate, code)
			continue
		}
		amount, _ := decimal.NewFromString(profit)
		stat := models.KingMidasDailyStat{
			StatDate:     statDate,
			AffiliateID:  affiliateID,
			ProfitAmount: models.NewMoneyFromDecimal(amount),
			OrderCount:   1,
		}
		if err := db.Create(&stat).Error; err != nil {
			stdLog.Printf("Failed to create daily stat for %s: %v", code, err)
		} else {
			stdLog.Printf("Created daily stat: %s %s = %s", statDate, code, profit)
		}
	}

	stdLog.Printf("Seed finished")
}
