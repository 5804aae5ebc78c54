package main

import (
	"errors"
	"flag"
	"os"

	"SplatSphere/src/db"
	"SplatSphere/src/gaussian"
	"SplatSphere/src/library/acceler"
	"SplatSphere/src/library/config"
	"SplatSphere/src/library/logger"
	"SplatSphere/src/ply"
)

func main() {
	// 解析命令行参数
	configPath := flag.String("config", "conf/training.yaml", "训练配置文件 (yaml 或 json)")
	inPath := flag.String("in", "", "读取已有的高斯 ply 文件")
	cloudPath := flag.String("cloud", "", "由点云 ply 文件初始化高斯")
	outPath := flag.String("out", "output/point_cloud.ply", "输出的高斯 ply 文件")
	extent := flag.Float64("extent", 1.0, "场景尺度，用于位置学习率缩放")
	isolation := flag.Bool("isolation", false, "执行孤立点剪枝")
	dbscan := flag.Bool("dbscan", false, "执行密度离群点剔除")
	checkpoint := flag.Int("checkpoint", -1, "写入检查点的迭代数，负数表示不写")
	resume := flag.Bool("resume", false, "从最新的检查点恢复")
	flag.Parse()

	cm := config.NewConfigManager(*configPath)
	if err := cm.LoadConfig(); err != nil {
		logger.Fatal("加载配置失败: %v", err)
	}
	if err := cm.ValidateConfig(); err != nil {
		logger.Fatal("配置无效: %v", err)
	}
	cfg := cm.Training

	level, _ := logger.ParseLevel(cfg.Log.Level)
	if err := logger.InitLogger(level, cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.Stdout); err != nil {
		logger.Fatal("初始化日志失败: %v", err)
	}
	logger.Info("配置: %v", cm.GetConfigSummary())
	logger.Info("计算策略: %s", acceler.NewComputeStrategySelector().SelectOptimalStrategy())

	model := gaussian.NewGaussianModel(cfg.SHDegree,
		gaussian.WithSeed(cfg.Seed),
		gaussian.WithDBSCAN(cfg.DBSCAN),
	)

	var store db.KvDb
	if *resume || *checkpoint >= 0 {
		kv, err := db.OpenCheckpointStore(cfg.Checkpoint)
		if err != nil {
			logger.Fatal("打开检查点存储失败: %v", err)
		}
		defer kv.Close()
		store = kv
	}

	switch {
	case *resume:
		snap, iteration, err := gaussian.LatestCheckpoint(store)
		if err != nil {
			logger.Fatal("读取最新检查点失败: %v", err)
		}
		if err := model.Restore(snap, cfg); err != nil {
			logger.Fatal("恢复检查点 %d 失败: %v", iteration, err)
		}
		logger.Info("已从检查点 %d 恢复 %d 个高斯", iteration, model.Len())
	case *inPath != "":
		if err := model.LoadPLY(*inPath); err != nil {
			if errors.Is(err, ply.ErrSchemaMismatch) {
				logger.Fatal("%s 与球谐阶数 %d 不匹配: %v", *inPath, cfg.SHDegree, err)
			}
			logger.Fatal("读取高斯失败: %v", err)
		}
	case *cloudPath != "":
		f, err := os.Open(*cloudPath)
		if err != nil {
			logger.Fatal("打开点云失败: %v", err)
		}
		pcd, err := ply.ReadPointCloud(f)
		f.Close()
		if err != nil {
			logger.Fatal("读取点云失败: %v", err)
		}
		if err := model.CreateFromPointCloud(pcd, *extent); err != nil {
			logger.Fatal("初始化高斯失败: %v", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if model.Optimizer() == nil {
		if err := model.TrainingSetup(cfg); err != nil {
			logger.Fatal("训练配置失败: %v", err)
		}
	}

	if *dbscan {
		if _, err := model.RemoveDensityOutliers(cfg.DBSCAN.Eps, cfg.DBSCAN.MinSamples); err != nil {
			logger.Fatal("密度离群点剔除失败: %v", err)
		}
	}
	if *isolation {
		if _, err := model.PruneIsolated(cfg.IsolationThreshold); err != nil {
			logger.Fatal("孤立点剪枝失败: %v", err)
		}
	}

	if err := model.SavePLY(*outPath); err != nil {
		logger.Fatal("写出高斯失败: %v", err)
	}
	if *checkpoint >= 0 {
		if err := model.SaveCheckpoint(store, *checkpoint); err != nil {
			logger.Error("写入检查点失败: %v", err)
		}
	}
}
