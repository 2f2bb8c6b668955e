// Copyright 2025 PackWatch Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package database implements a handle plugin that persists compliance
// reports to MySQL. It provides automatic schema migration, event-driven
// persistence and the read path behind the reports API.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/packwatch/packwatch/pkg/constants"
	"github.com/packwatch/packwatch/pkg/eventbus"
	"github.com/packwatch/packwatch/pkg/logger"
	"github.com/packwatch/packwatch/pkg/models"
	"github.com/packwatch/packwatch/pkg/plugin"
	"github.com/packwatch/packwatch/pkg/storage"
	"github.com/packwatch/packwatch/pkg/utils/config"
)

const (
	pluginName = constants.HandleDatabaseName
	pluginType = constants.HandlePluginType
)

func init() {
	plugin.PluginFactories[pluginName] = func() plugin.Plugin {
		return &DatabasePlugin{
			log: logger.GetLogger().WithField("plugin", pluginName),
		}
	}
}

type DatabasePlugin struct {
	log            logger.Logger
	db             *gorm.DB
	databaseConfig DatabaseConfig
}

type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	DatabaseName string `json:"databaseName"`
	Charset      string `json:"charset"`
}

func (p *DatabasePlugin) getDefaultConfig() DatabaseConfig {
	return DatabaseConfig{
		DatabaseName: "packwatch",
		Charset:      "utf8mb4",
	}
}

func (p *DatabasePlugin) loadConfig(setting string) error {
	p.databaseConfig = p.getDefaultConfig()

	if setting == "" {
		return errors.New("configuration cannot be empty")
	}

	var configFromJSON DatabaseConfig
	if err := json.Unmarshal([]byte(setting), &configFromJSON); err != nil {
		p.log.Error("Failed to parse configuration", logger.Fields{
			"error": err.Error(),
		})
		return err
	}
	if configFromJSON.Host == "" {
		return errors.New("host configuration cannot be empty")
	}
	if configFromJSON.Port == "" {
		return errors.New("port configuration cannot be empty")
	}
	if configFromJSON.Username == "" {
		return errors.New("username configuration cannot be empty")
	}
	if configFromJSON.Password == "" {
		return errors.New("password configuration cannot be empty")
	}

	p.databaseConfig.Host = configFromJSON.Host
	p.databaseConfig.Port = configFromJSON.Port
	p.databaseConfig.Username = configFromJSON.Username

	if pwd, err := config.GetSecureValue(configFromJSON.Password); err == nil {
		p.databaseConfig.Password = pwd
	} else {
		p.databaseConfig.Password = configFromJSON.Password
		p.log.Warn("Using plain text password - consider using environment variables")
	}

	if configFromJSON.DatabaseName != "" {
		p.databaseConfig.DatabaseName = configFromJSON.DatabaseName
	}
	if configFromJSON.Charset != "" {
		p.databaseConfig.Charset = configFromJSON.Charset
	}

	p.log.Info("Database configuration loaded", logger.Fields{
		"host":     p.databaseConfig.Host,
		"port":     p.databaseConfig.Port,
		"database": p.databaseConfig.DatabaseName,
	})

	return nil
}

func (p *DatabasePlugin) Name() string { return pluginName }
func (p *DatabasePlugin) Type() string { return pluginType }

func (p *DatabasePlugin) Start(
	ctx context.Context,
	pluginConfig config.PluginConfig,
	eventBus *eventbus.EventBus,
) error {
	p.log.Info("Starting database plugin")

	if err := p.loadConfig(pluginConfig.Settings); err != nil {
		p.log.Error("Failed to load configuration", logger.Fields{
			"error": err.Error(),
		})
		return err
	}

	if err := p.initDB(); err != nil {
		p.log.Error("Failed to initialize database", logger.Fields{
			"error": err.Error(),
		})
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := p.db.AutoMigrate(&models.ReportRecord{}); err != nil {
		p.log.Error("Database migration failed", logger.Fields{
			"error": err.Error(),
		})
		return fmt.Errorf("database migration failed: %w", err)
	}

	storage.SetReportStore(p)
	subscribe := eventBus.Subscribe(constants.ReportTopic)
	p.log.Info("Database plugin started successfully")

	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("Database plugin panic", logger.Fields{
					"panic": fmt.Sprintf("%v", r),
				})
			}
		}()

		for {
			select {
			case event, ok := <-subscribe:
				if !ok {
					p.log.Info("Event subscription channel closed")
					return
				}

				info, ok := event.Payload.(*models.ReportInfo)
				if !ok {
					p.log.Error("Invalid event payload type", logger.Fields{
						"expected": "*models.ReportInfo",
						"actual":   fmt.Sprintf("%T", event.Payload),
					})
					continue
				}

				if err := p.saveReport(info); err != nil {
					p.log.Error("Failed to save report to database", logger.Fields{
						"error":    err.Error(),
						"photo_id": info.PhotoID,
					})
				} else {
					p.log.Debug("Report saved successfully", logger.Fields{
						"photo_id": info.PhotoID,
					})
				}
			case <-ctx.Done():
				p.log.Info("Database plugin stopping")
				return
			}
		}
	}()

	return nil
}

func (p *DatabasePlugin) Stop(ctx context.Context) error {
	p.log.Info("Stopping database plugin")

	if p.db != nil {
		sqlDB, err := p.db.DB()
		if err != nil {
			return fmt.Errorf("failed to get database connection: %w", err)
		}
		if err := sqlDB.Close(); err != nil {
			return err
		}
	}

	return nil
}

func (p *DatabasePlugin) initDB() error {
	serverDSN := p.buildDSN(false)
	dbConfig := &gorm.Config{
		Logger: gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				SlowThreshold: 3 * time.Second,
				LogLevel:      gormLogger.Error,
				Colorful:      false,
			},
		),
	}
	db, err := gorm.Open(mysql.Open(serverDSN), dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to MySQL server: %w", err)
	}
	err = db.Exec(
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s CHARACTER SET %s COLLATE %s_unicode_ci",
			p.databaseConfig.DatabaseName,
			p.databaseConfig.Charset,
			p.databaseConfig.Charset),
	).Error
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	dbDSN := p.buildDSN(true)
	db, err = gorm.Open(mysql.Open(dbDSN), dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	p.db = db

	p.log.Info("Database initialized successfully", logger.Fields{
		"database": p.databaseConfig.DatabaseName,
	})

	return nil
}

func (p *DatabasePlugin) buildDSN(includeDB bool) string {
	dbPart := "/"
	if includeDB {
		dbPart = "/" + p.databaseConfig.DatabaseName
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)%s?charset=%s&parseTime=True&loc=Local",
		p.databaseConfig.Username,
		p.databaseConfig.Password,
		p.databaseConfig.Host,
		p.databaseConfig.Port,
		dbPart,
		p.databaseConfig.Charset,
	)
}

func (p *DatabasePlugin) saveReport(info *models.ReportInfo) error {
	if p.db == nil {
		return errors.New("database connection not initialized")
	}
	if info == nil {
		return errors.New("report is nil")
	}
	record := models.NewReportRecord(info)
	if err := p.db.Create(&record).Error; err != nil {
		return err
	}
	return nil
}

// RecentReports returns the most recent persisted reports, newest first.
// It implements storage.ReportStore for the API read path.
func (p *DatabasePlugin) RecentReports(limit int) ([]models.ReportRecord, error) {
	if p.db == nil {
		return nil, errors.New("database connection not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var records []models.ReportRecord
	err := p.db.Order("checked_at DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
