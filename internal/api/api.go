// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"net/http"
	"strconv"
	"time"

	"edop-api/internal/feature"
	"edop-api/internal/metrics"
	"edop-api/internal/store"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseCoord(r *http.Request, name string, min, max float64) (float64, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < min || v > max {
		return 0, false
	}
	return v, true
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 /api 前缀
// 背景：签名点查读路径带可选 Redis 缓存，键按坐标四位小数取整（约 11 米粒度）
func BuildRoutes(st *store.Store, rc *redis.Client, def feature.Definition, ranges feature.RangeSet) *http.ServeMux {
	apiMux := http.NewServeMux()

	apiMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := st.DB().PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	apiMux.HandleFunc("/signature", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		metrics.RequestsTotal.Inc()
		start := time.Now()
		defer func() {
			metrics.RequestDurationMs.Observe(float64(time.Since(start).Milliseconds()))
		}()
		lat, ok := parseCoord(r, "lat", -90, 90)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat must be a number in [-90, 90]"})
			return
		}
		lon, ok := parseCoord(r, "lon", -180, 180)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lon must be a number in [-180, 180]"})
			return
		}

		key := "sig:" + strconv.FormatFloat(lat, 'f', 4, 64) + ":" + strconv.FormatFloat(lon, 'f', 4, 64)
		if rc != nil {
			if s, _ := rc.Get(ctx, key).Result(); s != "" {
				metrics.RedisHitsTotal.Inc()
				var sig store.Signature
				if err := json.Unmarshal([]byte(s), &sig); err == nil {
					writeJSON(w, http.StatusOK, sig)
					return
				}
			} else {
				metrics.RedisMissesTotal.Inc()
			}
		}

		sig, err := st.SignatureByPoint(ctx, def, ranges, lat, lon)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "signature lookup failed"})
			return
		}
		if sig == nil {
			metrics.SignatureMissTotal.Inc()
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no basin covers this point"})
			return
		}
		if rc != nil {
			if b, err := json.Marshal(sig); err == nil {
				rc.Set(ctx, key, string(b), time.Hour*24)
			}
		}
		writeJSON(w, http.StatusOK, sig)
	})

	apiMux.HandleFunc("/clusters", func(w http.ResponseWriter, r *http.Request) {
		infos, err := st.ClusterSummary(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cluster summary failed"})
			return
		}
		writeJSON(w, http.StatusOK, infos)
	})

	return apiMux
}
